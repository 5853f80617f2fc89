package feed

import "context"

// Collector is a Consumer that keeps every row in memory, up to an optional
// row limit. Once the limit is reached it asks the adapter to stop.
type Collector struct {
	limit int
	table *Table
	full  bool
}

// NewCollector returns a collector holding at most limit rows; limit <= 0
// means no limit.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit, table: NewTable(DefaultChunkSize)}
}

// AcceptChunk appends the chunk's rows.
func (c *Collector) AcceptChunk(_ context.Context, chunk *Table) (bool, error) {
	for i := 0; i < chunk.Len(); i++ {
		if c.limit > 0 && c.table.Len() >= c.limit {
			c.full = true
			break
		}
		c.table.Append(chunk.Row(i))
	}
	if c.limit > 0 && c.table.Len() >= c.limit {
		c.full = true
	}
	return !c.full, nil
}

// ShouldStop reports whether the row limit has been reached.
func (c *Collector) ShouldStop() bool {
	return c.full
}

// Table returns the collected rows.
func (c *Collector) Table() *Table { return c.table }

// Full reports whether the limit was reached, i.e. the result may be cut short.
func (c *Collector) Full() bool { return c.full }
