package resource

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tieenbuii/WEB-API/internal/domain"
)

const fieldPassword = "password"

type userHooks struct {
	cost int
}

func (h *userHooks) BeforeCreate(_ context.Context, op *Op) error {
	if op.Body.String("role") == "" || !op.Caller.Privileged() {
		op.Body["role"] = domain.RoleUser
	}
	return h.hash(op)
}

func (h *userHooks) BeforeUpdate(_ context.Context, op *Op) error {
	if !op.Caller.Privileged() {
		delete(op.Body, "role")
	}
	return h.hash(op)
}

func (h *userHooks) hash(op *Op) error {
	pw := op.Body.String(fieldPassword)
	if pw == "" {
		return nil
	}
	cost := h.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	op.Body[fieldPassword] = string(hashed)
	return nil
}

// Permit lets users manage their own account.
func (h *userHooks) Permit(caller domain.Caller, doc domain.Document) bool {
	return caller.Privileged() || caller.Owns(doc.ID())
}

func (h *userHooks) Redact(doc domain.Document) domain.Document {
	return doc.Without(fieldPassword)
}
