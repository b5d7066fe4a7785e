package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Conflict reports a discriminant or enum attribute whose value is outside
// the set the rule table declares. The file parsed, but it was written by a
// SISTEMA schema revision the table does not know.
type Conflict struct {
	Tag   string
	Attr  string
	Value string
	Valid []string
}

func (c *Conflict) Error() string {
	valid := lo.Map(c.Valid, func(v string, _ int) string { return strconv.Quote(v) })
	return fmt.Sprintf("<%s> %s=%q is not one of %s", c.Tag, c.Attr, c.Value, strings.Join(valid, ", "))
}
