package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
)

// ErrInvalidArgument is returned for page and limit values that cannot be served
var ErrInvalidArgument = errors.New("invalid pagination argument")

// GraphQL cursor arguments
const (
	First  = "first"
	Last   = "last"
	After  = "after"
	Before = "before"
)

// Pagination reads the pagination state of a request
type Pagination struct {
	options Options
}

// New creates a pagination service. Empty parameter names take their default.
func New(options Options) *Pagination {
	return &Pagination{options: options.withDefaults()}
}

// Options returns the options the service runs with
func (p *Pagination) Options() Options {
	return p.options
}

// Page returns the requested page, 1 when absent
func (p *Pagination) Page(ctx *metadata.Context) (int, error) {
	page := 1
	if v, ok := ctx.Filter(p.options.PageParameterName); ok {
		page = intValue(v)
	}
	if page < 1 {
		return 0, fmt.Errorf("%w: Page should not be less than 1", ErrInvalidArgument)
	}
	return page, nil
}

// Limit returns the number of items per page: the operation setting, GraphQL cursor
// arguments, then the client parameter bounded by the maximum.
func (p *Pagination) Limit(op *metadata.Operation, ctx *metadata.Context) (int, error) {
	limit := p.options.ItemsPerPage
	clientLimit := p.options.ClientItemsPerPage
	if op != nil {
		if op.PaginationItemsPerPage != nil {
			limit = *op.PaginationItemsPerPage
		}
		if op.PaginationClientItemsPerPage != nil {
			clientLimit = *op.PaginationClientItemsPerPage
		}
	}

	if ctx.IsGraphQL() {
		if v, ok := ctx.Filter(First); ok && v != nil {
			limit = intValue(v)
		}
		if v, ok := ctx.Filter(Last); ok && v != nil {
			limit = intValue(v)
		}
		if v, ok := ctx.Filter(Before); ok && v != nil {
			before := decodeCursor(v)
			if before-limit < 0 {
				limit = before
			}
		}
	}

	if clientLimit {
		if v, ok := ctx.Filter(p.options.ItemsPerPageParameterName); ok {
			limit = intValue(v)
		}
		maximum := p.options.MaximumItemsPerPage
		if op != nil && op.PaginationMaximumItemsPerPage != nil {
			maximum = op.PaginationMaximumItemsPerPage
		}
		if maximum != nil && limit > *maximum {
			limit = *maximum
		}
	}

	if limit < 0 {
		return 0, fmt.Errorf("%w: Limit should not be less than 0", ErrInvalidArgument)
	}
	return limit, nil
}

// Offset returns the index of the first item. GraphQL cursors take precedence over the page.
func (p *Pagination) Offset(op *metadata.Operation, ctx *metadata.Context) (int, error) {
	limit, err := p.Limit(op, ctx)
	if err != nil {
		return 0, err
	}

	if ctx.IsGraphQL() {
		if v, ok := ctx.Filter(After); ok && v != nil {
			after, ok := decodeCursorStrict(v)
			if !ok {
				return 0, nil
			}
			return after + 1, nil
		}
		if v, ok := ctx.Filter(Before); ok && v != nil {
			return nonNegative(decodeCursor(v) - limit), nil
		}
		if v, ok := ctx.Filter(Last); ok && v != nil {
			count := 0
			if ctx.Count != nil {
				count = *ctx.Count
			}
			return nonNegative(count - intValue(v)), nil
		}
	}

	page, err := p.Page(ctx)
	if err != nil {
		return 0, err
	}
	return pageOffset(page, limit)
}

// pageOffset returns the index of the first item of page, rejecting pages whose
// offset does not fit in an int
func pageOffset(page, limit int) (int, error) {
	if page < 1 {
		return 0, fmt.Errorf("%w: Page should not be less than 1", ErrInvalidArgument)
	}
	if limit > 0 && page-1 > math.MaxInt/limit {
		return 0, fmt.Errorf("%w: Page should not be greater than %d", ErrInvalidArgument, math.MaxInt/limit+1)
	}
	return (page - 1) * limit, nil
}

// Pagination returns page, offset and limit at once
func (p *Pagination) Pagination(op *metadata.Operation, ctx *metadata.Context) (page, offset, limit int, err error) {
	if page, err = p.Page(ctx); err != nil {
		return 0, 0, 0, err
	}
	if limit, err = p.Limit(op, ctx); err != nil {
		return 0, 0, 0, err
	}
	if limit == 0 && page > 1 {
		return 0, 0, 0, fmt.Errorf("%w: Page should not be greater than 1 if limit is equal to 0", ErrInvalidArgument)
	}
	if offset, err = p.Offset(op, ctx); err != nil {
		return 0, 0, 0, err
	}
	return page, offset, limit, nil
}

// IsEnabled reports whether the collection is paginated
func (p *Pagination) IsEnabled(op *metadata.Operation, ctx *metadata.Context) bool {
	enabled, clientEnabled := p.options.Enabled, p.options.ClientEnabled
	if op != nil {
		enabled = boolOr(op.PaginationEnabled, enabled)
		clientEnabled = boolOr(op.PaginationClientEnabled, clientEnabled)
	}
	return p.clientValue(ctx, clientEnabled, p.options.EnabledParameterName, enabled)
}

// IsPartialEnabled reports whether the total item count is skipped
func (p *Pagination) IsPartialEnabled(op *metadata.Operation, ctx *metadata.Context) bool {
	partial, clientPartial := p.options.Partial, p.options.ClientPartial
	if op != nil {
		partial = boolOr(op.PaginationPartial, partial)
		clientPartial = boolOr(op.PaginationClientPartial, clientPartial)
	}
	return p.clientValue(ctx, clientPartial, p.options.PartialParameterName, partial)
}

// IsGraphQLEnabled reports whether GraphQL collections of op are paginated
func (p *Pagination) IsGraphQLEnabled(op *metadata.Operation) bool {
	if op != nil {
		return boolOr(op.PaginationEnabled, p.options.GraphQLEnabled)
	}
	return p.options.GraphQLEnabled
}

func (p *Pagination) clientValue(ctx *metadata.Context, client bool, parameter string, fallback bool) bool {
	if !client {
		return fallback
	}
	v, ok := ctx.Filter(parameter)
	if !ok {
		return fallback
	}
	return boolValue(v)
}

// EncodeCursor returns the GraphQL cursor of the item at offset
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// decodeCursor returns the offset a cursor points at, 0 when it cannot be decoded
func decodeCursor(v interface{}) int {
	n, _ := decodeCursorStrict(v)
	return n
}

func decodeCursorStrict(v interface{}) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, false
	}
	return intValue(string(raw)), true
}

// intValue converts request values to int. Unparsable strings count as 0.
func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// boolValue accepts the spellings of a boolean query parameter
func boolValue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "on", "yes":
			return true
		}
	case int:
		return b == 1
	}
	return false
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
