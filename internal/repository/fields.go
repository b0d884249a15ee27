package repository

import (
	"bookstore-service/internal/entity"
	"fmt"
	"github.com/shopspring/decimal"
	"strings"
)

// InvalidFieldError reports a patch value rejected by its field validator.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// updateField binds one updatable column to its slot in a patch struct.
// Only columns listed in a field table can ever appear in an UPDATE.
type updateField[P any] struct {
	column   string
	value    func(p *P) (any, bool)
	validate func(v any) string
}

func opt[T any](v *T) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

func notBlank(v any) string {
	if strings.TrimSpace(v.(string)) == "" {
		return "must not be empty"
	}
	return ""
}

func positiveID(v any) string {
	if v.(int64) <= 0 {
		return "must be a positive id"
	}
	return ""
}

var bookFields = []updateField[entity.BookPatch]{
	{column: "title", value: func(p *entity.BookPatch) (any, bool) { return opt(p.Title) }, validate: notBlank},
	{column: "author", value: func(p *entity.BookPatch) (any, bool) { return opt(p.Author) }},
	{column: "isbn", value: func(p *entity.BookPatch) (any, bool) { return opt(p.ISBN) }},
	{column: "description", value: func(p *entity.BookPatch) (any, bool) { return opt(p.Description) }},
	{column: "price", value: func(p *entity.BookPatch) (any, bool) { return opt(p.Price) }, validate: func(v any) string {
		if v.(decimal.Decimal).IsNegative() {
			return "must not be negative"
		}
		return ""
	}},
	{column: "stock", value: func(p *entity.BookPatch) (any, bool) { return opt(p.Stock) }, validate: func(v any) string {
		if v.(int) < 0 {
			return "must not be negative"
		}
		return ""
	}},
	{column: "type_id", value: func(p *entity.BookPatch) (any, bool) { return opt(p.TypeID) }, validate: positiveID},
	{column: "seller_id", value: func(p *entity.BookPatch) (any, bool) { return opt(p.SellerID) }, validate: positiveID},
	{column: "is_active", value: func(p *entity.BookPatch) (any, bool) { return opt(p.IsActive) }},
}

var validRoles = map[string]bool{entity.RoleCustomer: true, entity.RoleSeller: true, entity.RoleAdmin: true}
var validStatuses = map[string]bool{entity.UserStatusActive: true, entity.UserStatusInactive: true}

var userFields = []updateField[entity.UserPatch]{
	{column: "name", value: func(p *entity.UserPatch) (any, bool) { return opt(p.Name) }, validate: notBlank},
	{column: "email", value: func(p *entity.UserPatch) (any, bool) { return opt(p.Email) }, validate: func(v any) string {
		if !strings.Contains(v.(string), "@") {
			return "must be an email address"
		}
		return ""
	}},
	{column: "password_hash", value: func(p *entity.UserPatch) (any, bool) { return opt(p.PasswordHash) }},
	{column: "role", value: func(p *entity.UserPatch) (any, bool) { return opt(p.Role) }, validate: func(v any) string {
		if !validRoles[v.(string)] {
			return "unknown role"
		}
		return ""
	}},
	{column: "status", value: func(p *entity.UserPatch) (any, bool) { return opt(p.Status) }, validate: func(v any) string {
		if !validStatuses[v.(string)] {
			return "unknown status"
		}
		return ""
	}},
}

// buildUpdate renders "UPDATE table SET a = ?, b = ? WHERE key = ?" from the
// fields set in patch. It returns an empty query when nothing is set.
func buildUpdate[P any](table, key string, fields []updateField[P], patch *P, id int64) (string, []any, error) {
	var sets []string
	var args []any
	for _, f := range fields {
		v, ok := f.value(patch)
		if !ok {
			continue
		}
		if f.validate != nil {
			if reason := f.validate(v); reason != "" {
				return "", nil, &InvalidFieldError{Field: f.column, Reason: reason}
			}
		}
		sets = append(sets, f.column+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), key)
	return query, args, nil
}
