package core

import (
	"errors"
	"testing"
)

func TestIsOwnerOrMember(t *testing.T) {
	b := FinanceBoard{ID: "b1", OwnerID: "owner", MemberIDs: []string{"owner", "m1"}}
	tests := []struct {
		user string
		want bool
	}{
		{"owner", true},
		{"m1", true},
		{"stranger", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := b.IsOwnerOrMember(tt.user); got != tt.want {
			t.Errorf("IsOwnerOrMember(%q) = %v, want %v", tt.user, got, tt.want)
		}
	}
}

func TestScopeKey(t *testing.T) {
	if PersonalScope("u1").Key() != "user:u1" {
		t.Error("unexpected personal key")
	}
	if BoardScope("b1").Key() != "board:b1" || !BoardScope("b1").IsBoard() {
		t.Error("unexpected board key")
	}
}

func TestInviteResolve(t *testing.T) {
	tests := []struct {
		name       string
		invite     FinanceBoardInvite
		action     InviteAction
		responder  Responder
		wantErr    error
		wantStatus InviteStatus
		wantMember string
	}{
		{
			name:       "email invite accepted by invited address",
			invite:     FinanceBoardInvite{Type: InviteEmail, Email: "ana@example.com", OwnerID: "owner", Status: InvitePending},
			action:     Accept,
			responder:  Responder{UserID: "ana", Email: "Ana@Example.com"},
			wantStatus: InviteAccepted,
			wantMember: "ana",
		},
		{
			name:       "email invite answered by someone else",
			invite:     FinanceBoardInvite{Type: InviteEmail, Email: "ana@example.com", OwnerID: "owner", Status: InvitePending},
			action:     Accept,
			responder:  Responder{UserID: "bob", Email: "bob@example.com"},
			wantErr:    ErrUnauthorized,
			wantStatus: InvitePending,
		},
		{
			name:       "join request accepted by owner",
			invite:     FinanceBoardInvite{Type: InviteCode, UserID: "carl", OwnerID: "owner", Status: InvitePending},
			action:     Accept,
			responder:  Responder{UserID: "owner"},
			wantStatus: InviteAccepted,
			wantMember: "carl",
		},
		{
			name:       "join request cannot be self-approved",
			invite:     FinanceBoardInvite{Type: InviteCode, UserID: "carl", OwnerID: "owner", Status: InvitePending},
			action:     Accept,
			responder:  Responder{UserID: "carl"},
			wantErr:    ErrUnauthorized,
			wantStatus: InvitePending,
		},
		{
			name:       "rejected",
			invite:     FinanceBoardInvite{Type: InviteCode, UserID: "carl", OwnerID: "owner", Status: InvitePending},
			action:     Reject,
			responder:  Responder{UserID: "owner"},
			wantStatus: InviteRejected,
		},
		{
			name:       "terminal once resolved",
			invite:     FinanceBoardInvite{Type: InviteCode, UserID: "carl", OwnerID: "owner", Status: InviteRejected},
			action:     Accept,
			responder:  Responder{UserID: "owner"},
			wantErr:    ErrInviteResolved,
			wantStatus: InviteRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := &FinanceBoard{ID: "b1", OwnerID: "owner", MemberIDs: []string{"owner"}, IsPersonal: true}
			inv := tt.invite
			err := inv.Resolve(tt.action, tt.responder, board)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if inv.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", inv.Status, tt.wantStatus)
			}
			if tt.wantMember != "" {
				if !board.IsOwnerOrMember(tt.wantMember) {
					t.Errorf("%s not added to board", tt.wantMember)
				}
				if board.IsPersonal {
					t.Error("board should stop being personal after a second member joins")
				}
			}
		})
	}
}
