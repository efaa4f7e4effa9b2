package pgstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/google/uuid"
)

// dateKey marks an encoded timestamp inside a JSONB document.
const dateKey = "$date"

// dateLayout is fixed width so that lexical order equals time order.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

// query accumulates a SELECT over a table or a nested subquery.
type query struct {
	args   []any
	from   string
	where  []string
	order  string
	offset string
	limit  string
	depth  int
}

func newQuery(table string) *query {
	return &query{from: table}
}

// arg appends a positional argument and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) match(f docstore.Filter) error {
	if f.ID != "" {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return fmt.Errorf("%w: %q", docstore.ErrInvalidID, f.ID)
		}
		q.where = append(q.where, "id::uuid = "+q.arg(id))
	}

	if f.Search != nil && len(f.Search.Fields) > 0 {
		pattern := q.arg("%" + escapeLike(f.Search.Term) + "%")
		ors := make([]string, len(f.Search.Fields))
		for i, field := range f.Search.Fields {
			ors[i] = fmt.Sprintf("doc->>%s::text ILIKE %s", q.arg(field), pattern)
		}
		q.where = append(q.where, "("+strings.Join(ors, " OR ")+")")
	}

	return nil
}

func (q *query) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *query) sql() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id::text AS id, doc, seq FROM %s", q.from)
	b.WriteString(q.whereClause())

	if q.order != "" {
		b.WriteString(" ORDER BY " + q.order)
	} else {
		b.WriteString(" ORDER BY seq")
	}
	if q.limit != "" {
		b.WriteString(" LIMIT " + q.limit)
	}
	if q.offset != "" {
		b.WriteString(" OFFSET " + q.offset)
	}
	return b.String()
}

// nest turns the current query into a subquery so that later stages
// apply to its result rather than being merged into the same SELECT.
func (q *query) nest() {
	q.from = fmt.Sprintf("(%s) AS s%d", q.sql(), q.depth)
	q.depth++
	q.where = nil
	q.order = ""
	q.offset = ""
	q.limit = ""
}

func (q *query) paged() bool {
	return q.offset != "" || q.limit != ""
}

func compilePipeline(table string, p docstore.Pipeline) (*query, error) {
	q := newQuery(table)

	for _, st := range p {
		switch st := st.(type) {
		case docstore.Match:
			if q.paged() || q.order != "" {
				q.nest()
			}
			if err := q.match(st.Filter); err != nil {
				return nil, err
			}
		case docstore.Sort:
			if q.paged() {
				q.nest()
			}
			keys := make([]string, 0, len(st.Fields)+1)
			for _, sf := range st.Fields {
				field := q.arg(sf.Field)
				dir := "ASC NULLS FIRST"
				if sf.Desc {
					dir = "DESC NULLS LAST"
				}
				keys = append(keys, fmt.Sprintf("COALESCE(doc->%s::text->>'%s', doc->>%s::text) %s", field, dateKey, field, dir))
			}
			keys = append(keys, "seq")
			q.order = strings.Join(keys, ", ")
		case docstore.Skip:
			if q.limit != "" {
				q.nest()
			}
			q.offset = q.arg(st.N)
		case docstore.Limit:
			if q.limit != "" {
				q.nest()
			}
			q.limit = q.arg(st.N)
		default:
			return nil, fmt.Errorf("pgstore: unsupported stage %T", st)
		}
	}

	return q, nil
}

// escapeLike escapes ILIKE wildcards so the term matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func encodeDocument(doc docstore.Document) ([]byte, error) {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == docstore.IDField {
			continue
		}
		out[k] = encodeValue(v)
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}

func encodeValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return map[string]any{dateKey: v.UTC().Format(dateLayout)}
	case docstore.Document:
		return encodeValue(map[string]any(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return v
	}
}

func decodeDocument(id string, body []byte) (docstore.Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}

	doc := make(docstore.Document, len(raw)+1)
	for k, v := range raw {
		doc[k] = decodeValue(v)
	}
	doc[docstore.IDField] = id
	return doc, nil
}

func decodeValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if s, ok := v[dateKey].(string); ok && len(v) == 1 {
			if t, err := time.Parse(dateLayout, s); err == nil {
				return t
			}
		}
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = decodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = decodeValue(e)
		}
		return out
	default:
		return v
	}
}
