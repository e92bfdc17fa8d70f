package graph

import (
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// dateTimeLayouts are tried in order when parsing a DateTime input.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// DateTime is an ISO-8601 date and time scalar backed by time.Time.
var DateTime = graphql.NewScalar(graphql.ScalarConfig{
	Name:        DateTimeName,
	Description: "ISO-8601 encoded date and time",
	Serialize:   serializeDateTime,
	ParseValue: func(value any) any {
		switch v := value.(type) {
		case string:
			if t, ok := ParseDateTime(v); ok {
				return t
			}
		case time.Time:
			return v
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) any {
		sv, ok := valueAST.(*ast.StringValue)
		if !ok {
			return nil
		}
		if t, ok := ParseDateTime(sv.Value); ok {
			return t
		}
		return nil
	},
})

// ParseDateTime parses s with the accepted DateTime layouts.
func ParseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func serializeDateTime(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format(time.RFC3339)
	case string:
		if t, ok := ParseDateTime(v); ok {
			return t.Format(time.RFC3339)
		}
		return v
	}
	return nil
}
