package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type VisibilityMode string

const (
	VisibilityAll  VisibilityMode = "ALL"
	VisibilityNone VisibilityMode = "NONE"
	VisibilitySome VisibilityMode = "SOME"
)

// DefaultVisibility is applied to both sensitive fields of a new user.
const DefaultVisibility = VisibilityAll

func ParseVisibilityMode(v string) (VisibilityMode, error) {
	switch mode := VisibilityMode(strings.ToUpper(strings.TrimSpace(v))); mode {
	case VisibilityAll, VisibilityNone, VisibilitySome:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: visibility must be one of ALL, NONE, SOME", ErrInvalidInput)
	}
}

type FieldKind string

const (
	FieldKindPhone       FieldKind = "phone"
	FieldKindDateOfBirth FieldKind = "date_of_birth"
)

func ParseFieldKind(v string) (FieldKind, error) {
	switch kind := FieldKind(strings.ToLower(strings.TrimSpace(v))); kind {
	case FieldKindPhone, FieldKindDateOfBirth:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: field kind must be phone or date_of_birth", ErrInvalidInput)
	}
}

// MutableField names a field an owner may change through self-service.
type MutableField string

const (
	FieldName            MutableField = "name"
	FieldUsername        MutableField = "username"
	FieldPhoto           MutableField = "photo"
	FieldDateOfBirth     MutableField = "date_of_birth"
	FieldPhoneVisibility MutableField = "phone_visibility"
	FieldBirthVisibility MutableField = "birth_visibility"
)

func ParseMutableField(v string) (MutableField, error) {
	switch field := MutableField(strings.ToLower(strings.TrimSpace(v))); field {
	case FieldName, FieldUsername, FieldPhoto, FieldDateOfBirth, FieldPhoneVisibility, FieldBirthVisibility:
		return field, nil
	default:
		return "", fmt.Errorf("%w: field %q is not self-service mutable", ErrInvalidInput, v)
	}
}

type User struct {
	ID              uuid.UUID
	Username        string
	Name            string
	Phone           string
	Photo           string
	DateOfBirth     *time.Time
	PhoneVisibility VisibilityMode
	BirthVisibility VisibilityMode
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u User) VisibilityFor(kind FieldKind) VisibilityMode {
	switch kind {
	case FieldKindPhone:
		return u.PhoneVisibility
	case FieldKindDateOfBirth:
		return u.BirthVisibility
	default:
		return ""
	}
}

// UserMutation carries one validated self-service change. Only the value
// matching Field is read.
type UserMutation struct {
	Field       MutableField
	Text        string
	DateOfBirth *time.Time
	Visibility  VisibilityMode
	At          time.Time
}

// AllowList is the set of viewers granted access to one sensitive field.
type AllowList map[uuid.UUID]struct{}

func NewAllowList(viewers ...uuid.UUID) AllowList {
	out := make(AllowList, len(viewers))
	for _, id := range viewers {
		out[id] = struct{}{}
	}
	return out
}

func (a AllowList) Contains(id uuid.UUID) bool {
	_, ok := a[id]
	return ok
}

// IDs returns the members in a stable order.
func (a AllowList) IDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a))
	for id := range a {
		out = append(out, id)
	}
	slices.SortFunc(out, func(x, y uuid.UUID) int { return strings.Compare(x.String(), y.String()) })
	return out
}
