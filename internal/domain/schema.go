package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/validator"
)

// Ref is a document reference that accepts a plain id or an expanded
// document in JSON.
type Ref string

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return errors.New("reference must be an id or an object with an id")
	}
	*r = Ref(RefID(m))
	return nil
}

// ProductSchema is the validated shape of a product.
type ProductSchema struct {
	Title          string           `json:"title" validate:"required,max=200"`
	Slug           string           `json:"slug"`
	Description    string           `json:"description"`
	Price          float64          `json:"price" validate:"gte=0"`
	Promotion      *float64         `json:"promotion" validate:"omitempty,gte=0"`
	Inventory      int64            `json:"inventory" validate:"gte=0"`
	RatingsAverage float64          `json:"ratingsAverage" validate:"gte=0,lte=5"`
	RatingsQty     int64            `json:"ratingsQuantity" validate:"gte=0"`
	EachRating     map[string]int64 `json:"eachRating"`
	CreatedBy      Ref              `json:"createdBy"`
	UpdatedBy      Ref              `json:"updatedBy"`
}

// CartLine is one ordered product.
type CartLine struct {
	Product  Ref     `json:"product" validate:"required_without=ID"`
	ID       Ref     `json:"id"`
	Title    string  `json:"title"`
	Quantity int64   `json:"quantity" validate:"gte=1"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// OrderSchema is the validated shape of an order.
type OrderSchema struct {
	User       Ref        `json:"user" validate:"required"`
	Cart       []CartLine `json:"cart" validate:"required,min=1,dive"`
	TotalPrice float64    `json:"totalPrice" validate:"gte=0"`
	Status     string     `json:"status" validate:"omitempty,oneof=pending processing shipped delivered cancelled"`
	Address    string     `json:"address"`
	Phone      string     `json:"phone"`
}

// InvoiceLine is one received product.
type InvoiceLine struct {
	Product  Ref   `json:"product" validate:"required"`
	Quantity int64 `json:"quantity" validate:"gte=1"`
}

// ImportSchema is the validated shape of a stock import.
type ImportSchema struct {
	User    Ref           `json:"user" validate:"required"`
	Invoice []InvoiceLine `json:"invoice" validate:"required,min=1,dive"`
}

// ReviewSchema is the validated shape of a review.
type ReviewSchema struct {
	User    Ref    `json:"user" validate:"required"`
	Product Ref    `json:"product" validate:"required"`
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Review  string `json:"review" validate:"max=2000"`
}

// CommentSchema is the validated shape of a comment.
type CommentSchema struct {
	User     Ref    `json:"user" validate:"required"`
	Product  Ref    `json:"product" validate:"required"`
	Content  string `json:"content" validate:"required,max=2000"`
	Parent   *Ref   `json:"parent"`
	Children []Ref  `json:"children"`
}

// UserSchema is the validated shape of a user.
type UserSchema struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=user employee admin"`
	Password string `json:"password" validate:"required"`
}

// Validate checks d against the schema of e. Shape errors are reported as
// invalid input, rule failures as *validator.ValidationError.
func Validate(e Entity, d Document) error {
	var target any
	switch e {
	case Product:
		target = &ProductSchema{}
	case Order:
		target = &OrderSchema{}
	case Import:
		target = &ImportSchema{}
	case Review:
		target = &ReviewSchema{}
	case Comment:
		target = &CommentSchema{}
	case User:
		target = &UserSchema{}
	default:
		return nil
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid %s: %s", e, describeDecodeError(err)))
	}
	return validator.Validate(target)
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field '%s' must be %s", typeErr.Field, typeErr.Type.String())
	}
	return err.Error()
}
