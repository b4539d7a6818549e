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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// MemoryLedger is an in-process Client implementation with real balance,
// supply, and permission accounting. It backs tests and local
// development; transactions publish atomically and permission checks
// mirror the delegated-send model of the real ledger.
type MemoryLedger struct {
	mu           sync.Mutex
	operator     Signer
	accounts     map[Address]*memAccount
	publishSeq   uint64
	accountSeq   uint64
	failNext     map[string]*failureInjection
	publishCount int
}

type memAccount struct {
	name        string
	description string
	owner       Address
	metadata    []byte
	balances    map[Address]*big.Int
	permissions map[Address]Permission
	// supply is non-nil for token accounts
	supply  *big.Int
	isToken bool
}

type failureInjection struct {
	// skip passes through this many calls before failing starts
	skip      int
	remaining int
	err       error
}

// NewMemoryLedger creates an empty ledger with the given operator
// identity. Client methods that create accounts or manage supply act as
// the operator.
func NewMemoryLedger(operator Signer) *MemoryLedger {
	return &MemoryLedger{
		operator: operator,
		accounts: make(map[Address]*memAccount),
		failNext: make(map[string]*failureInjection),
	}
}

func (m *MemoryLedger) account(addr Address) *memAccount {
	acct, ok := m.accounts[addr]
	if !ok {
		acct = &memAccount{
			balances:    make(map[Address]*big.Int),
			permissions: make(map[Address]Permission),
		}
		m.accounts[addr] = acct
	}
	return acct
}

func (m *MemoryLedger) balance(addr, token Address) *big.Int {
	acct, ok := m.accounts[addr]
	if !ok {
		return new(big.Int)
	}
	bal, ok := acct.balances[token]
	if !ok {
		return new(big.Int)
	}
	return bal
}

// checkCtx maps context expiry to the ledger timeout error
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrLedgerTimeout, ctx.Err())
	default:
		return nil
	}
}

// FailNext makes the next n calls of the named operation ("publish",
// "mint", "burn") fail with err. Used by tests to exercise the retry and
// refund paths.
func (m *MemoryLedger) FailNext(op string, n int, err error) {
	m.FailNextAfter(op, 0, n, err)
}

// FailNextAfter passes through the first skip calls of op, then fails
// the following n with err. Lets tests target the payout half of a
// two-transaction flow without touching the deposit half.
func (m *MemoryLedger) FailNextAfter(op string, skip, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = &failureInjection{skip: skip, remaining: n, err: err}
}

func (m *MemoryLedger) takeFailure(op string) error {
	inj, ok := m.failNext[op]
	if !ok || inj.remaining <= 0 {
		return nil
	}
	if inj.skip > 0 {
		inj.skip--
		return nil
	}
	inj.remaining--
	return inj.err
}

// AccountFromAddress resolves and validates an address string
func (m *MemoryLedger) AccountFromAddress(addr string) (Account, error) {
	parsed, err := ParseAddress(addr)
	if err != nil {
		return Account{}, err
	}
	return Account{Address: parsed}, nil
}

// BalancesOf lists all non-zero token holdings of an account
func (m *MemoryLedger) BalancesOf(
	ctx context.Context,
	acct Account,
) ([]Balance, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[acct.Address]
	if !ok {
		return nil, nil
	}
	balances := make([]Balance, 0, len(stored.balances))
	for token, amount := range stored.balances {
		if amount.Sign() == 0 {
			continue
		}
		balances = append(balances, Balance{
			Token:  token,
			Amount: new(big.Int).Set(amount),
		})
	}
	return balances, nil
}

// AccountInfo returns the metadata view of an account
func (m *MemoryLedger) AccountInfo(
	ctx context.Context,
	acct Account,
) (AccountInfo, error) {
	if err := checkCtx(ctx); err != nil {
		return AccountInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[acct.Address]
	if !ok {
		return AccountInfo{}, ErrAccountNotFound
	}
	info := AccountInfo{
		Name:        stored.name,
		Description: stored.description,
		Owner:       stored.owner,
		Metadata:    stored.metadata,
	}
	if stored.supply != nil {
		info.Supply = new(big.Int).Set(stored.supply)
	}
	return info, nil
}

// NewTransaction starts a builder for the given signer
func (m *MemoryLedger) NewTransaction(signer Signer) *TxBuilder {
	return NewTxBuilder(signer)
}

// Publish applies all accumulated operations atomically. Validation runs
// against a scratch view first so a failing operation leaves no trace.
func (m *MemoryLedger) Publish(
	ctx context.Context,
	tx *TxBuilder,
) (*PublishResult, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("publish"); err != nil {
		return nil, err
	}
	if tx.signer == nil {
		return nil, fmt.Errorf("%w: no signer", ErrLedgerRejected)
	}
	// Verify the transaction signature
	digest := tx.digest()
	sig := tx.signer.Sign(digest)
	if !ed25519.Verify(tx.signer.PublicKey(), digest, sig) {
		return nil, fmt.Errorf("%w: bad signature", ErrLedgerRejected)
	}
	signerAddr := AddressFromPublicKey(tx.signer.PublicKey())

	// Validation pass over a scratch balance view
	scratch := make(map[string]*big.Int)
	key := func(addr, token Address) string {
		return string(addr) + "/" + string(token)
	}
	avail := func(addr, token Address) *big.Int {
		k := key(addr, token)
		if v, ok := scratch[k]; ok {
			return v
		}
		v := new(big.Int).Set(m.balance(addr, token))
		scratch[k] = v
		return v
	}
	for _, op := range tx.ops {
		switch op.kind {
		case opSend:
			source := signerAddr
			if op.onBehalfOf != "" && op.onBehalfOf != signerAddr {
				source = op.onBehalfOf
				if err := m.checkSendAuthority(source, signerAddr); err != nil {
					return nil, err
				}
			}
			if _, ok := m.accounts[op.token]; !ok {
				return nil, fmt.Errorf(
					"%w: %w", ErrLedgerRejected, ErrTokenNotFound,
				)
			}
			bal := avail(source, op.token)
			if bal.Cmp(op.amount) < 0 {
				return nil, fmt.Errorf(
					"%w: %w", ErrLedgerRejected, ErrInsufficientBalance,
				)
			}
			bal.Sub(bal, op.amount)
			dest := avail(op.to, op.token)
			dest.Add(dest, op.amount)
		case opUpdatePermissions, opSetMetadata:
			target := op.onBehalfOf
			if target == "" {
				target = signerAddr
			}
			if err := m.checkAdminAuthority(target, signerAddr); err != nil {
				return nil, err
			}
		}
	}

	// Commit pass
	m.publishSeq++
	result := &PublishResult{}
	for i, op := range tx.ops {
		switch op.kind {
		case opSend:
			source := signerAddr
			if op.onBehalfOf != "" && op.onBehalfOf != signerAddr {
				source = op.onBehalfOf
			}
			m.debit(source, op.token, op.amount)
			m.credit(op.to, op.token, op.amount)
		case opUpdatePermissions:
			target := op.onBehalfOf
			if target == "" {
				target = signerAddr
			}
			m.account(target).permissions[op.subject] = op.perms
		case opSetMetadata:
			target := op.onBehalfOf
			if target == "" {
				target = signerAddr
			}
			m.account(target).metadata = op.metadata
		}
		result.Blocks = append(result.Blocks, Block{
			Hash: m.blockHash(i, digest),
		})
	}
	m.publishCount++
	return result, nil
}

// checkSendAuthority verifies the signer may move assets out of a
// storage account
func (m *MemoryLedger) checkSendAuthority(account, signer Address) error {
	acct, ok := m.accounts[account]
	if !ok {
		return fmt.Errorf("%w: %w", ErrLedgerRejected, ErrAccountNotFound)
	}
	if acct.owner == signer {
		return nil
	}
	if acct.permissions[signer]&PermSendOnBehalf != 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLedgerRejected, ErrNotPermitted)
}

// checkAdminAuthority verifies the signer may modify account settings
func (m *MemoryLedger) checkAdminAuthority(account, signer Address) error {
	acct, ok := m.accounts[account]
	if !ok {
		// Signer configuring its own implicit account
		if account == signer {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrLedgerRejected, ErrAccountNotFound)
	}
	if account == signer || acct.owner == signer {
		return nil
	}
	if acct.permissions[signer]&PermUpdateInfo != 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLedgerRejected, ErrNotPermitted)
}

func (m *MemoryLedger) debit(addr, token Address, amount *big.Int) {
	acct := m.account(addr)
	bal, ok := acct.balances[token]
	if !ok {
		bal = new(big.Int)
		acct.balances[token] = bal
	}
	bal.Sub(bal, amount)
}

func (m *MemoryLedger) credit(addr, token Address, amount *big.Int) {
	acct := m.account(addr)
	bal, ok := acct.balances[token]
	if !ok {
		bal = new(big.Int)
		acct.balances[token] = bal
	}
	bal.Add(bal, amount)
}

func (m *MemoryLedger) blockHash(opIndex int, digest []byte) []byte {
	hash, _ := blake2b.New256(nil)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], m.publishSeq)
	hash.Write(seq[:])
	binary.BigEndian.PutUint64(seq[:], uint64(opIndex))
	hash.Write(seq[:])
	hash.Write(digest)
	return hash.Sum(nil)
}

// CreateStorageAccount creates a new storage account owned per opts,
// optionally granting the operator SEND_ON_BEHALF
func (m *MemoryLedger) CreateStorageAccount(
	ctx context.Context,
	opts StorageAccountOpts,
) (Address, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountSeq++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], m.accountSeq)
	addr := deriveAddress(
		[]byte("storage"),
		[]byte(opts.Owner),
		[]byte(opts.Name),
		seq[:],
	)
	acct := m.account(addr)
	acct.name = opts.Name
	acct.description = opts.Description
	acct.owner = opts.Owner
	if opts.GrantOperatorSendOnBehalf && m.operator != nil {
		acct.permissions[m.operator.Address()] = PermSendOnBehalf
	}
	return addr, nil
}

// CreateLPToken creates a supply-managed token bound to a pool via its
// metadata
func (m *MemoryLedger) CreateLPToken(
	ctx context.Context,
	pool, tokenA, tokenB Address,
	decimals uint,
) (Address, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountSeq++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], m.accountSeq)
	addr := deriveAddress(
		[]byte("lp"),
		[]byte(pool),
		[]byte(tokenA),
		[]byte(tokenB),
		seq[:],
	)
	meta, err := json.Marshal(&LPTokenMetadata{
		Type:     MetadataTypeLPToken,
		Pool:     string(pool),
		TokenA:   string(tokenA),
		TokenB:   string(tokenB),
		Decimals: decimals,
	})
	if err != nil {
		return "", err
	}
	acct := m.account(addr)
	acct.name = "LP"
	acct.metadata = meta
	acct.supply = new(big.Int)
	acct.isToken = true
	if m.operator != nil {
		acct.owner = m.operator.Address()
	}
	return addr, nil
}

// MintSupply mints amount of token to an account. Only the operator
// (the client identity) manages supply.
func (m *MemoryLedger) MintSupply(
	ctx context.Context,
	token Address,
	to Address,
	amount *big.Int,
) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("mint"); err != nil {
		return err
	}
	acct, ok := m.accounts[token]
	if !ok || !acct.isToken {
		return ErrTokenNotFound
	}
	acct.supply.Add(acct.supply, amount)
	m.credit(to, token, amount)
	return nil
}

// BurnSupply burns amount of token out of the balance parked at the
// token's own account
func (m *MemoryLedger) BurnSupply(
	ctx context.Context,
	token Address,
	from Address,
	amount *big.Int,
) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("burn"); err != nil {
		return err
	}
	if from == "" {
		return fmt.Errorf("%w: missing holder", ErrLedgerRejected)
	}
	acct, ok := m.accounts[token]
	if !ok || !acct.isToken {
		return ErrTokenNotFound
	}
	parked := m.balance(token, token)
	if parked.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %w", ErrLedgerRejected, ErrInsufficientBalance)
	}
	m.debit(token, token, amount)
	acct.supply.Sub(acct.supply, amount)
	return nil
}

// CreateTokenAccount registers a plain token with symbol metadata. This
// is a development and test helper; real tokens already exist on the
// ledger.
func (m *MemoryLedger) CreateTokenAccount(
	symbol string,
	decimals uint,
) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountSeq++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], m.accountSeq)
	addr := deriveAddress([]byte("token"), []byte(symbol), seq[:])
	meta, err := json.Marshal(&TokenMetadata{
		Type:     MetadataTypeToken,
		Symbol:   symbol,
		Decimals: decimals,
	})
	if err != nil {
		return "", err
	}
	acct := m.account(addr)
	acct.name = symbol
	acct.metadata = meta
	acct.supply = new(big.Int)
	acct.isToken = true
	return addr, nil
}

// Credit seeds an account balance directly. Development and test helper.
func (m *MemoryLedger) Credit(addr, token Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct, ok := m.accounts[token]; ok && acct.isToken {
		acct.supply.Add(acct.supply, amount)
	}
	m.credit(addr, token, amount)
}

// BalanceOf reads a single balance. Test helper.
func (m *MemoryLedger) BalanceOf(addr, token Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(addr, token))
}

// SupplyOf reads a token's current supply. Test helper.
func (m *MemoryLedger) SupplyOf(token Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[token]
	if !ok || acct.supply == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(acct.supply)
}

// PublishCount returns the number of successful publishes. Test helper.
func (m *MemoryLedger) PublishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publishCount
}

// HasPermission reports whether grantee holds perm on account. Test
// helper.
func (m *MemoryLedger) HasPermission(
	account, grantee Address,
	perm Permission,
) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[account]
	if !ok {
		return false
	}
	return acct.permissions[grantee]&perm != 0
}
