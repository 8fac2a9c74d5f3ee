package store

import (
	"context"

	"boostmarket/internal/models"
)

type WalletStore struct {
	kv KV
}

func NewWalletStore(kv KV) *WalletStore {
	return &WalletStore{kv: kv}
}

func (s *WalletStore) Get(ctx context.Context, userID string) (models.MultiWallet, bool, error) {
	var wallet models.MultiWallet
	ok, err := getJSON(ctx, s.kv, walletKey(userID), &wallet)
	if err != nil || !ok {
		return models.MultiWallet{}, ok, err
	}
	if wallet.StaticWallets == nil {
		wallet.StaticWallets = map[models.Currency]models.StaticWallet{}
	}
	if wallet.GoldWallets == nil {
		wallet.GoldWallets = map[string]models.GoldWallet{}
	}
	return wallet, true, nil
}

func (s *WalletStore) Save(ctx context.Context, wallet models.MultiWallet) error {
	return setJSON(ctx, s.kv, walletKey(wallet.UserID), wallet)
}
