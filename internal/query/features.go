package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrMalformed marks query parameters that cannot be turned into a store
// filter. Handlers surface it as a 400.
var ErrMalformed = errors.New("malformed query parameter")

// Params is the flat query-string mapping as Fiber delivers it: a range
// predicate like price[gte]=500 arrives under the literal key "price[gte]".
type Params map[string]string

const (
	defaultPage  = 1
	defaultLimit = 100
)

// Reserved keys drive the pipeline itself and are never store filters.
var reservedKeys = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

// Comparator is a range operator accepted in bracket form.
type Comparator string

const (
	Gte Comparator = "gte"
	Gt  Comparator = "gt"
	Lte Comparator = "lte"
	Lt  Comparator = "lt"
)

func (c Comparator) mongo() (string, bool) {
	switch c {
	case Gte:
		return "$gte", true
	case Gt:
		return "$gt", true
	case Lte:
		return "$lte", true
	case Lt:
		return "$lt", true
	}
	return "", false
}

// Features accumulates a store query through four ordered transformations:
// Filter, Sort, LimitFields, Paginate. Every step returns a new value, so a
// partially built Features can be reused freely.
type Features struct {
	filter     bson.M
	sort       bson.D
	projection bson.M
	skip       int64
	limit      int64
}

// Filter turns every non-reserved parameter into an equality or range
// predicate. Unknown bracket operators are rejected rather than passed
// through to the store.
func (f Features) Filter(params Params) (Features, error) {
	filter := bson.M{}
	for key, value := range params {
		if reservedKeys[key] {
			continue
		}

		field, op, hasOp, err := splitKey(key)
		if err != nil {
			return f, err
		}

		if !hasOp {
			// A bare key cannot coexist with a range doc on the same field;
			// which one wins would depend on map iteration order.
			if _, exists := filter[field]; exists {
				return f, fmt.Errorf("%w: conflicting predicates for %q", ErrMalformed, field)
			}
			filter[field] = parseValue(value)
			continue
		}

		mongoOp, ok := Comparator(op).mongo()
		if !ok {
			return f, fmt.Errorf("%w: unsupported comparator %q", ErrMalformed, op)
		}
		rangeDoc, ok := filter[field].(bson.M)
		if !ok {
			if _, exists := filter[field]; exists {
				return f, fmt.Errorf("%w: conflicting predicates for %q", ErrMalformed, field)
			}
			rangeDoc = bson.M{}
			filter[field] = rangeDoc
		}
		rangeDoc[mongoOp] = parseValue(value)
	}

	out := f
	out.filter = filter
	return out, nil
}

// Sort applies a comma-separated sort list where a leading '-' means
// descending; listed order is the tie-break chain. Without a sort parameter
// results come back newest first.
func (f Features) Sort(params Params) Features {
	out := f
	spec := params["sort"]
	if spec == "" {
		out.sort = bson.D{{Key: "createdAt", Value: -1}}
		return out
	}

	sort := bson.D{}
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		direction := 1
		if strings.HasPrefix(field, "-") {
			direction = -1
			field = field[1:]
		}
		sort = append(sort, bson.E{Key: field, Value: direction})
	}
	out.sort = sort
	return out
}

// LimitFields builds the projection. A comma-separated fields parameter
// selects exactly those fields; a '-' prefix excludes instead. With no
// parameter everything except the legacy __v field is returned.
func (f Features) LimitFields(params Params) Features {
	out := f
	spec := params["fields"]
	if spec == "" {
		out.projection = bson.M{"__v": 0}
		return out
	}

	projection := bson.M{}
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "-") {
			projection[field[1:]] = 0
		} else {
			projection[field] = 1
		}
	}
	out.projection = projection
	return out
}

// Paginate computes skip/limit from page and limit, defaulting to page 1
// and 100 documents. Values that do not parse as positive integers fall
// back to the defaults. There is no upper bound on limit.
func (f Features) Paginate(params Params) Features {
	out := f
	page := positiveInt(params["page"], defaultPage)
	limit := positiveInt(params["limit"], defaultLimit)
	out.skip = int64(page-1) * int64(limit)
	out.limit = int64(limit)
	return out
}

// Criteria returns the filter document for the store's find operation.
func (f Features) Criteria() bson.M {
	if f.filter == nil {
		return bson.M{}
	}
	return f.filter
}

// FindOptions returns the accumulated sort/projection/skip/limit.
func (f Features) FindOptions() *options.FindOptions {
	opts := options.Find()
	if f.sort != nil {
		opts.SetSort(f.sort)
	}
	if f.projection != nil {
		opts.SetProjection(f.projection)
	}
	if f.limit > 0 {
		opts.SetSkip(f.skip)
		opts.SetLimit(f.limit)
	}
	return opts
}

func splitKey(key string) (field, op string, hasOp bool, err error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "", false, nil
	}
	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", false, fmt.Errorf("%w: %q", ErrMalformed, key)
	}
	op = key[open+1 : len(key)-1]
	if op == "" {
		return "", "", false, fmt.Errorf("%w: %q", ErrMalformed, key)
	}
	return key[:open], op, true, nil
}

// parseValue gives filter values their natural BSON type so that range
// comparisons work; everything that is not a number or bool stays a string.
func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return fl
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
