package memdex

import (
	"iter"

	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/drpcorg/memdex/utils"
	"github.com/pkg/errors"
)

// Catalog is the process-wide registry of generated tables.
type Catalog struct {
	tables *utils.CMap[string, Table]
	log    utils.Logger
}

func NewCatalog(log utils.Logger) *Catalog {
	return &Catalog{tables: utils.NewCMap[string, Table](), log: log}
}

func (c *Catalog) Register(t Table) {
	c.tables.Store(t.Name(), t)
	c.log.Debug("table registered", "table", t.Name())
}

func (c *Catalog) Table(name string) (Table, error) {
	t, ok := c.tables.Load(name)
	if !ok {
		return nil, errors.Wrap(memdex_errors.ErrUnknownTable, name)
	}
	return t, nil
}

func (c *Catalog) Tables() iter.Seq[Table] {
	return func(yield func(Table) bool) {
		c.tables.Range(func(_ string, t Table) bool {
			return yield(t)
		})
	}
}
