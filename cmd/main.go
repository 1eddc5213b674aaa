package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/drpcorg/memdex"
	"github.com/drpcorg/memdex/examples"
	"github.com/drpcorg/memdex/locks"
	"github.com/drpcorg/memdex/utils"
	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("customer"),
	readline.PcItem("order"),
	readline.PcItem("assign"),
	readline.PcItem("del",
		readline.PcItem("customer"),
		readline.PcItem("order"),
	),

	readline.PcItem("list"),
	readline.PcItem("trace"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

const scopeTimeout = time.Second

type shell struct {
	domain *examples.Domain
	trace  *memdex.ChangeTrace
	rl     *readline.Instance
}

func (sh *shell) open() (err error) {
	sh.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".memdex_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	sh.rl.CaptureExitSignal()
	return
}

func (sh *shell) close() {
	if sh.rl != nil {
		_ = sh.rl.Close()
		sh.rl = nil
	}
}

func parseInt(arg string) (int64, error) {
	return strconv.ParseInt(arg, 10, 64)
}

func (sh *shell) insertCustomer(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: customer <id> <name>")
	}
	id, err := parseInt(args[0])
	if err != nil {
		return err
	}
	scope := memdex.NewScope(scopeTimeout)
	defer func() { _ = scope.Close() }()
	if err = sh.domain.InsertCustomer(scope, examples.NewCustomer(id, args[1])); err != nil {
		return err
	}
	scope.Complete()
	return nil
}

func (sh *shell) insertOrder(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: order <id> <customer-id>")
	}
	id, err := parseInt(args[0])
	if err != nil {
		return err
	}
	customerId, err := parseInt(args[1])
	if err != nil {
		return err
	}
	scope := memdex.NewScope(scopeTimeout)
	defer func() { _ = scope.Close() }()
	if err = sh.domain.InsertOrder(scope, examples.NewOrder(id, customerId)); err != nil {
		return err
	}
	scope.Complete()
	return nil
}

func (sh *shell) assign(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: assign <order-id> <customer-id>")
	}
	orderId, err := parseInt(args[0])
	if err != nil {
		return err
	}
	customerId, err := parseInt(args[1])
	if err != nil {
		return err
	}
	row, err := sh.domain.Orders.OrderKey.MustFind(memdex.IntKey(orderId))
	if err != nil {
		return err
	}
	scope := memdex.NewScope(scopeTimeout)
	defer func() { _ = scope.Close() }()
	if err = sh.domain.ReassignOrder(scope, row.(*examples.Order), customerId); err != nil {
		return err
	}
	scope.Complete()
	return nil
}

func (sh *shell) del(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: del customer|order <id>")
	}
	id, err := parseInt(args[1])
	if err != nil {
		return err
	}
	scope := memdex.NewScope(scopeTimeout)
	defer func() { _ = scope.Close() }()
	switch args[0] {
	case "customer":
		row, ferr := sh.domain.Customers.CustomerKey.MustFind(memdex.IntKey(id))
		if ferr != nil {
			return ferr
		}
		err = sh.domain.DeleteCustomer(scope, row.(*examples.Customer))
	case "order":
		row, ferr := sh.domain.Orders.OrderKey.MustFind(memdex.IntKey(id))
		if ferr != nil {
			return ferr
		}
		err = sh.domain.DeleteOrder(scope, row.(*examples.Order))
	default:
		return fmt.Errorf("usage: del customer|order <id>")
	}
	if err != nil {
		return err
	}
	scope.Complete()
	return nil
}

func (sh *shell) list() error {
	scope := memdex.NewScope(scopeTimeout)
	defer func() { _ = scope.Close() }()
	for table := range sh.domain.Catalog.Tables() {
		if err := scope.WaitReader(table); err != nil {
			return err
		}
		for name, ix := range table.UniqueIndexes() {
			if err := scope.WaitReader(ix); err != nil {
				return err
			}
			fmt.Printf("%s.%s\n", table.Name(), name)
			for key, row := range ix.All() {
				fmt.Printf("  %s\t%v\n", key, row)
			}
		}
	}
	return nil
}

func (sh *shell) showTrace() error {
	for _, entry := range sh.trace.Recent() {
		c := entry.Change
		fmt.Printf("%s\t%s\tprev=%v curr=%v\n", entry.Index, c.Action, c.Prev, c.Curr)
	}
	return nil
}

func (sh *shell) run() error {
	fmt.Println("Commands: customer, order, assign, del, list, trace, exit")
	for {
		line, err := sh.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println("customer <id> <name>\norder <id> <customer-id>\nassign <order-id> <customer-id>\ndel customer|order <id>\nlist\ntrace")
			continue
		case "customer":
			err = sh.insertCustomer(args)
		case "order":
			err = sh.insertOrder(args)
		case "assign":
			err = sh.assign(args)
		case "del":
			err = sh.del(args)
		case "list":
			err = sh.list()
		case "trace":
			err = sh.showTrace()
		default:
			err = fmt.Errorf("unknown command %q, try help", cmd)
		}
		if err != nil {
			fmt.Printf("rolled back: %s\n", err)
		}
	}
}

func main() {
	prometheus.MustRegister(
		locks.LockAcquireCount, locks.LockTimeoutCount, locks.LockHolders,
		memdex.IndexOpCount, memdex.ConstraintViolationCount, memdex.TxnFinishedCount,
	)

	log := utils.NewDefaultLogger(slog.LevelInfo)
	catalog := memdex.NewCatalog(log)
	domain := examples.NewDomain(catalog)

	trace := memdex.NewChangeTrace(1024)
	trace.Watch(domain.Customers.CustomerKey)
	trace.Watch(domain.Orders.OrderKey)

	sh := &shell{domain: domain, trace: trace}
	if err := sh.open(); err != nil {
		log.Error("readline init failed", "error", err)
		os.Exit(1)
	}
	defer sh.close()

	if err := sh.run(); err != nil {
		log.Error("repl failed", "error", err)
		os.Exit(1)
	}
}
