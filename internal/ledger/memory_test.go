// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"
	"time"
)

type testSigner struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return &testSigner{priv: priv, pub: pub}
}

func (s *testSigner) Address() Address {
	return AddressFromPublicKey(s.pub)
}

func (s *testSigner) PublicKey() ed25519.PublicKey {
	return s.pub
}

func (s *testSigner) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

func TestParseAddress(t *testing.T) {
	signer := newTestSigner(t)
	addr := signer.Address()

	parsed, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != addr {
		t.Errorf("expected %s, got %s", addr, parsed)
	}

	for _, bad := range []string{
		"",
		"kta1",
		"kta1zzzz",
		"xyz1" + addr.String()[4:],
		addr.String() + "00",
	} {
		if _, err := ParseAddress(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("expected ErrInvalidAddress for %q, got %v", bad, err)
		}
	}
}

func TestAddressAbbrev(t *testing.T) {
	addr := Address("kta1aabbccddeeff00112233445566778899aabbcc")
	expected := "kta1aabbcc...bbcc"
	if addr.Abbrev() != expected {
		t.Errorf("expected %s, got %s", expected, addr.Abbrev())
	}
}

func TestDecodeLPTokenMetadata(t *testing.T) {
	good := []byte(
		`{"type":"LP_TOKEN","pool":"kta1ff","tokenA":"kta1aa","tokenB":"kta1bb","decimals":9}`,
	)
	meta, ok := DecodeLPTokenMetadata(good)
	if !ok {
		t.Fatal("expected metadata to decode")
	}
	if meta.Pool != "kta1ff" || meta.Decimals != 9 {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	for _, bad := range [][]byte{
		nil,
		[]byte(`{}`),
		[]byte(`{"type":"TOKEN","symbol":"TKA"}`),
		[]byte(`not json`),
	} {
		if _, ok := DecodeLPTokenMetadata(bad); ok {
			t.Errorf("expected decode failure for %q", bad)
		}
	}
}

func TestCreateStorageAccount(t *testing.T) {
	operator := newTestSigner(t)
	owner := newTestSigner(t)
	ml := NewMemoryLedger(operator)

	addr, err := ml.CreateStorageAccount(
		context.Background(),
		StorageAccountOpts{
			Name:                      "TKA/TKB pool",
			GrantOperatorSendOnBehalf: true,
			Owner:                     owner.Address(),
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ml.HasPermission(addr, operator.Address(), PermSendOnBehalf) {
		t.Error("expected operator to hold SEND_ON_BEHALF")
	}
	info, err := ml.AccountInfo(
		context.Background(),
		Account{Address: addr},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Owner != owner.Address() {
		t.Errorf("expected owner %s, got %s", owner.Address(), info.Owner)
	}
}

func TestPublishAtomicity(t *testing.T) {
	operator := newTestSigner(t)
	user := newTestSigner(t)
	target := newTestSigner(t)
	ml := NewMemoryLedger(operator)

	token, err := ml.CreateTokenAccount("TKA", 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ml.Credit(user.Address(), token, big.NewInt(100))

	// Second send exceeds the remaining balance; neither settles
	tx := ml.NewTransaction(user).
		Send(target.Address(), big.NewInt(80), token).
		Send(target.Address(), big.NewInt(80), token)
	_, err = ml.Publish(context.Background(), tx)
	if !errors.Is(err, ErrLedgerRejected) {
		t.Fatalf("expected ErrLedgerRejected, got %v", err)
	}
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance cause, got %v", err)
	}
	if got := ml.BalanceOf(user.Address(), token); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected untouched balance 100, got %s", got)
	}
	if got := ml.BalanceOf(target.Address(), token); got.Sign() != 0 {
		t.Errorf("expected zero target balance, got %s", got)
	}

	// Both fit; both settle and each op yields a block hash
	tx = ml.NewTransaction(user).
		Send(target.Address(), big.NewInt(30), token).
		Send(target.Address(), big.NewInt(20), token)
	result, err := ml.Publish(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Blocks) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(result.Blocks))
	}
	if result.FirstHash() == "" {
		t.Error("expected a block hash")
	}
	if got := ml.BalanceOf(target.Address(), token); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("expected target balance 50, got %s", got)
	}
}

func TestSendOnBehalfRequiresPermission(t *testing.T) {
	operator := newTestSigner(t)
	owner := newTestSigner(t)
	stranger := newTestSigner(t)
	ml := NewMemoryLedger(operator)

	token, _ := ml.CreateTokenAccount("TKA", 9)
	pool, err := ml.CreateStorageAccount(
		context.Background(),
		StorageAccountOpts{
			Name:                      "pool",
			GrantOperatorSendOnBehalf: true,
			Owner:                     owner.Address(),
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ml.Credit(pool, token, big.NewInt(1000))

	// A stranger cannot pull from the pool
	tx := ml.NewTransaction(stranger).
		SendOnBehalfOf(pool, stranger.Address(), big.NewInt(10), token)
	if _, err := ml.Publish(context.Background(), tx); !errors.Is(err, ErrNotPermitted) {
		t.Errorf("expected ErrNotPermitted, got %v", err)
	}

	// The operator can
	tx = ml.NewTransaction(operator).
		SendOnBehalfOf(pool, stranger.Address(), big.NewInt(10), token)
	if _, err := ml.Publish(context.Background(), tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ml.BalanceOf(stranger.Address(), token); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("expected 10, got %s", got)
	}
}

func TestMintAndBurnSupply(t *testing.T) {
	operator := newTestSigner(t)
	user := newTestSigner(t)
	ml := NewMemoryLedger(operator)

	lp, err := ml.CreateLPToken(
		context.Background(),
		"kta1"+"00112233445566778899aabbccddeeff00112233",
		"kta1"+"aa112233445566778899aabbccddeeff00112233",
		"kta1"+"bb112233445566778899aabbccddeeff00112233",
		9,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ml.MintSupply(context.Background(), lp, user.Address(), big.NewInt(500)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ml.SupplyOf(lp); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("expected supply 500, got %s", got)
	}

	// Burn requires the tokens parked at the token account
	err = ml.BurnSupply(context.Background(), lp, user.Address(), big.NewInt(200))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}

	tx := ml.NewTransaction(user).Send(lp, big.NewInt(200), lp)
	if _, err := ml.Publish(context.Background(), tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ml.BurnSupply(context.Background(), lp, user.Address(), big.NewInt(200)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ml.SupplyOf(lp); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("expected supply 300, got %s", got)
	}
	if got := ml.BalanceOf(user.Address(), lp); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("expected user balance 300, got %s", got)
	}
}

func TestLedgerTimeout(t *testing.T) {
	operator := newTestSigner(t)
	ml := NewMemoryLedger(operator)

	ctx, cancel := context.WithDeadline(
		context.Background(),
		time.Now().Add(-time.Second),
	)
	defer cancel()

	_, err := ml.BalancesOf(ctx, Account{Address: operator.Address()})
	if !errors.Is(err, ErrLedgerTimeout) {
		t.Errorf("expected ErrLedgerTimeout, got %v", err)
	}
}

func TestFailNextPublish(t *testing.T) {
	operator := newTestSigner(t)
	ml := NewMemoryLedger(operator)
	token, _ := ml.CreateTokenAccount("TKA", 9)
	ml.Credit(operator.Address(), token, big.NewInt(100))

	injected := errors.New("injected")
	ml.FailNext("publish", 2, injected)

	for i := 0; i < 2; i++ {
		tx := ml.NewTransaction(operator).
			Send(operator.Address(), big.NewInt(1), token)
		if _, err := ml.Publish(context.Background(), tx); !errors.Is(err, injected) {
			t.Errorf("publish %d: expected injected error, got %v", i, err)
		}
	}
	tx := ml.NewTransaction(operator).
		Send(operator.Address(), big.NewInt(1), token)
	if _, err := ml.Publish(context.Background(), tx); err != nil {
		t.Errorf("expected recovery after injections, got %v", err)
	}
}
