package models

import (
	"errors"
	"testing"
	"time"
)

func TestWalletRefValidate(t *testing.T) {
	if err := StaticRef(CurrencyUSD).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := GoldRef("eu-1").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := StaticRef(CurrencyGold).Validate(); !errors.Is(err, ErrInvalidWalletRef) {
		t.Fatalf("expected ErrInvalidWalletRef, got %v", err)
	}
	if err := GoldRef(" ").Validate(); !errors.Is(err, ErrInvalidWalletRef) {
		t.Fatalf("expected ErrInvalidWalletRef, got %v", err)
	}
}

func TestWalletIDs(t *testing.T) {
	if got := StaticRef(CurrencyToman).WalletID("u1"); got != "u1:toman" {
		t.Fatalf("unexpected wallet id %s", got)
	}
	if got := GoldRef("R1").WalletID("u1"); got != "u1:gold:R1" {
		t.Fatalf("unexpected wallet id %s", got)
	}
}

func TestMultiWalletCloneIsDeep(t *testing.T) {
	w := NewMultiWallet("u1", time.Now())
	w.GoldWallets["R1"] = GoldWallet{RealmID: "R1", WithdrawableGold: 10}
	clone := w.Clone()
	clone.GoldWallets["R1"] = GoldWallet{RealmID: "R1", WithdrawableGold: 99}
	clone.StaticWallets[CurrencyUSD] = StaticWallet{Currency: CurrencyUSD, Balance: 5}
	if w.GoldWallets["R1"].WithdrawableGold != 10 || w.StaticWallets[CurrencyUSD].Balance != 0 {
		t.Fatalf("clone mutated original: %#v", w)
	}
}

func TestListingEarningsRecipient(t *testing.T) {
	personal := ServiceListing{CreatedBy: "seller"}
	if personal.EarningsRecipient() != "seller" {
		t.Fatalf("expected creator as recipient")
	}
	team := ServiceListing{CreatedBy: "member", WorkspaceOwnerID: "owner", WorkspaceType: WorkspaceTeam}
	if team.EarningsRecipient() != "owner" {
		t.Fatalf("expected team owner as recipient")
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" USD ")
	if err != nil || c != CurrencyUSD {
		t.Fatalf("unexpected parse result %q %v", c, err)
	}
	if _, err := ParseCurrency("eur"); err == nil {
		t.Fatalf("expected error for unsupported currency")
	}
}
