package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	InviteEmail InviteType = "email"
	InviteCode  InviteType = "code"

	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRejected InviteStatus = "rejected"

	Accept InviteAction = "accept"
	Reject InviteAction = "reject"
)

type (
	InviteType   string
	InviteStatus string
	InviteAction string

	// Scope bounds which items a query may see: a personal owner or a
	// shared board.
	Scope struct {
		OwnerID string
		BoardID string
	}

	FinanceBoard struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		OwnerID    string    `json:"ownerId"`
		MemberIDs  []string  `json:"memberIds"`
		IsPersonal bool      `json:"isPersonal"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	FinanceBoardInvite struct {
		ID      string       `json:"id"`
		BoardID string       `json:"boardId"`
		OwnerID string       `json:"ownerId"`
		Type    InviteType   `json:"type"`
		Status  InviteStatus `json:"status"`
		Email   string       `json:"email,omitempty"`
		UserID  string       `json:"userId,omitempty"`
	}

	// Responder identifies who answers an invite.
	Responder struct {
		UserID string
		Email  string
	}
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrSyntheticImmutable  = errors.New("synthetic items cannot be modified")
	ErrUpstreamUnavailable = errors.New("upstream store unavailable")
	ErrInviteResolved      = errors.New("invite already resolved")
	ErrInvalidAction       = errors.New("invalid invite action")
	ErrEmptyName           = errors.New("empty name")
	ErrDuplicateCategory   = errors.New("category already exists")
)

func PersonalScope(userID string) Scope {
	return Scope{OwnerID: userID}
}

func BoardScope(boardID string) Scope {
	return Scope{BoardID: boardID}
}

func (s Scope) IsBoard() bool {
	return s.BoardID != ""
}

// Key identifies the scope in cache keys and change events.
func (s Scope) Key() string {
	if s.IsBoard() {
		return "board:" + s.BoardID
	}
	return "user:" + s.OwnerID
}

// IsOwnerOrMember reports whether userID may see the board's items.
func (b FinanceBoard) IsOwnerOrMember(userID string) bool {
	if userID == "" {
		return false
	}
	return b.OwnerID == userID || slices.Contains(b.MemberIDs, userID)
}

// AddMember joins userID to the board. A board stops being personal once a
// second member joins.
func (b *FinanceBoard) AddMember(userID string) {
	if !slices.Contains(b.MemberIDs, userID) {
		b.MemberIDs = append(b.MemberIDs, userID)
	}
	if len(b.MemberIDs) > 1 {
		b.IsPersonal = false
	}
}

// CanRespond checks the responder against the invite target: email invites
// are answered by the invited address, join requests by the board owner.
func (inv FinanceBoardInvite) CanRespond(r Responder) bool {
	switch inv.Type {
	case InviteEmail:
		return r.Email != "" && strings.EqualFold(strings.TrimSpace(r.Email), strings.TrimSpace(inv.Email))
	case InviteCode:
		return r.UserID != "" && r.UserID == inv.OwnerID
	}
	return false
}

// Resolve moves a pending invite to accepted or rejected. On acceptance the
// joining user is added to board.
func (inv *FinanceBoardInvite) Resolve(action InviteAction, r Responder, board *FinanceBoard) error {
	if inv.Status != InvitePending {
		return ErrInviteResolved
	}
	if !inv.CanRespond(r) {
		return ErrUnauthorized
	}
	switch action {
	case Accept:
		joining := inv.UserID
		if inv.Type == InviteEmail {
			joining = r.UserID
		}
		if board != nil && joining != "" {
			board.AddMember(joining)
		}
		inv.Status = InviteAccepted
	case Reject:
		inv.Status = InviteRejected
	default:
		return ErrInvalidAction
	}
	return nil
}
