package thehive

// Helpers for TheHive's v1 query API. A query is a pipeline of named
// operations: a list source, optional filter clauses, and a page range.

type queryBody struct {
	Query []map[string]any `json:"query"`
}

// buildQuery assembles a list query with optional filters and pagination.
func buildQuery(listOp string, clauses []map[string]any, page *PageOptions) *queryBody {
	ops := []map[string]any{{"_name": listOp}}

	switch len(clauses) {
	case 0:
	case 1:
		filter := map[string]any{"_name": "filter"}
		for k, v := range clauses[0] {
			filter[k] = v
		}
		ops = append(ops, filter)
	default:
		ops = append(ops, map[string]any{"_name": "filter", "_and": clauses})
	}

	if page == nil {
		page = &PageOptions{}
	}
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	ops = append(ops, map[string]any{
		"_name": "page",
		"from":  page.Offset,
		"to":    page.Offset + limit,
	})

	return &queryBody{Query: ops}
}

func eqClause(field string, value any) map[string]any {
	return map[string]any{"_eq": map[string]any{"_field": field, "_value": value}}
}

func inClause(field string, values []any) map[string]any {
	return map[string]any{"_in": map[string]any{"_field": field, "_values": values}}
}
