package recovery

import (
	"fmt"
	"log/slog"
	"math/big"
	"math/bits"
	"sync"

	"github.com/manuelog-udc/tfm-munics/interfaces"
	"github.com/manuelog-udc/tfm-munics/registry"
	"github.com/manuelog-udc/tfm-munics/verifier"
)

// MaxWaitingPeriod bounds Config.WaitingPeriod so that ledger time plus the
// period cannot overflow.
const MaxWaitingPeriod = uint64(1) << 32

// Config holds the construction-time parameters of a Module. Everything but
// Sink and Log is required; none of it can change afterwards.
type Config struct {
	// Wallet is the protected multisig wallet.
	Wallet interfaces.WalletAdapter

	// Treasury pays cancellation rewards out of the module balance.
	Treasury interfaces.Treasury

	// Clock supplies ledger time for the waiting period.
	Clock interfaces.Clock

	// RequiredDeposit is the minimum payment for start and complete.
	RequiredDeposit *big.Int

	// WaitingPeriod is the delay in seconds between start and complete.
	WaitingPeriod uint64

	// VerifyingKeys is the initial registry content.
	VerifyingKeys []*verifier.VerifyingKey

	// Sink optionally receives every event after it is journaled.
	Sink interfaces.EventSink

	Log *slog.Logger
}

// Module is the recovery state machine protecting one wallet. Every exported
// method is atomic with respect to the others.
type Module struct {
	mu sync.Mutex

	wallet   interfaces.WalletAdapter
	treasury interfaces.Treasury
	clock    interfaces.Clock
	sink     interfaces.EventSink
	log      *slog.Logger

	requiredDeposit *big.Int
	waitingPeriod   uint64

	keys     *registry.KeyRegistry
	verifier *verifier.Verifier

	request   Request
	votes     map[interfaces.Address]struct{}
	voteOrder []interfaces.Address
	balance   *big.Int

	events []interfaces.Event
	seq    uint64
}

// New validates cfg and creates an idle module.
func New(cfg Config) (*Module, error) {
	switch {
	case cfg.Wallet == nil:
		return nil, fmt.Errorf("%w: wallet is required", ErrInvalidConfig)
	case cfg.Treasury == nil:
		return nil, fmt.Errorf("%w: treasury is required", ErrInvalidConfig)
	case cfg.Clock == nil:
		return nil, fmt.Errorf("%w: clock is required", ErrInvalidConfig)
	case cfg.RequiredDeposit == nil || cfg.RequiredDeposit.Sign() < 0:
		return nil, fmt.Errorf("%w: required deposit must be non-negative", ErrInvalidConfig)
	case cfg.WaitingPeriod == 0:
		return nil, fmt.Errorf("%w: waiting period must be positive", ErrInvalidConfig)
	case cfg.WaitingPeriod > MaxWaitingPeriod:
		return nil, fmt.Errorf("%w: waiting period exceeds %d seconds", ErrInvalidConfig, MaxWaitingPeriod)
	}

	keys, err := registry.New(cfg.VerifyingKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Module{
		wallet:          cfg.Wallet,
		treasury:        cfg.Treasury,
		clock:           cfg.Clock,
		sink:            cfg.Sink,
		log:             log.With("wallet", cfg.Wallet.Address().String()),
		requiredDeposit: new(big.Int).Set(cfg.RequiredDeposit),
		waitingPeriod:   cfg.WaitingPeriod,
		keys:            keys,
		verifier:        verifier.New(keys),
		votes:           make(map[interfaces.Address]struct{}),
		balance:         new(big.Int),
	}, nil
}

// Start opens a recovery request for caller, who must not be an owner and
// must pay at least the required deposit.
func (m *Module) Start(caller interfaces.Address, payment *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller.IsZero() {
		return ErrZeroAddress
	}
	if m.request.Active {
		return ErrRecoveryInProgress
	}
	if !m.paid(payment) {
		return ErrInsufficientPayment
	}
	if err := m.requireNonOwner(caller); err != nil {
		return err
	}

	nonce, err := m.wallet.MutationNonce()
	if err != nil {
		return fmt.Errorf("failed to read wallet nonce: %w", err)
	}

	now, err := m.clock.Now()
	if err != nil {
		return fmt.Errorf("failed to read ledger time: %w", err)
	}
	readyAt, carry := bits.Add64(now, m.waitingPeriod, 0)
	if carry != 0 {
		return fmt.Errorf("%w: ledger time %d plus waiting period overflows", ErrInvalidConfig, now)
	}
	m.request = Request{
		Active:      true,
		Candidate:   caller,
		ReadyAt:     readyAt,
		Deposit:     new(big.Int).Set(payment),
		WalletNonce: nonce,
	}
	m.resetVotes()
	m.balance.Add(m.balance, payment)

	m.log.Info("Recovery started",
		slog.String("candidate", caller.String()),
		slog.Uint64("ready_at", readyAt))
	m.emit(interfaces.Event{Kind: interfaces.RecoveryStarted, Candidate: caller, ReadyAt: readyAt})
	return nil
}

// Cancel records caller's vote against the active request. When the votes
// reach the wallet's owner threshold the request is dropped and the deposit
// is paid to caller.
func (m *Module) Cancel(caller interfaces.Address, payment *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.request.Active {
		return ErrNoRecoveryInProgress
	}
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if _, voted := m.votes[caller]; voted {
		return ErrDuplicateVote
	}

	threshold, err := m.wallet.OwnerThreshold()
	if err != nil {
		return fmt.Errorf("failed to read owner threshold: %w", err)
	}

	votes := len(m.votes) + 1
	if uint64(votes) < threshold {
		m.votes[caller] = struct{}{}
		m.voteOrder = append(m.voteOrder, caller)
		m.receive(payment)

		m.log.Info("Cancel vote recorded",
			slog.String("voter", caller.String()),
			slog.Int("votes", votes),
			slog.Uint64("threshold", threshold))
		m.emit(interfaces.Event{Kind: interfaces.CancelVoteRecorded, Voter: caller, Votes: votes})
		return nil
	}

	refund := new(big.Int).Set(m.request.Deposit)
	if err := m.treasury.Transfer(caller, refund); err != nil {
		return fmt.Errorf("failed to pay cancellation reward: %w", err)
	}
	m.receive(payment)
	m.balance.Sub(m.balance, refund)

	m.log.Info("Recovery cancelled",
		slog.String("payee", caller.String()),
		slog.String("amount", refund.String()),
		slog.Int("votes", votes))
	m.emit(interfaces.Event{Kind: interfaces.CancelVoteRecorded, Voter: caller, Votes: votes})
	m.emit(interfaces.Event{Kind: interfaces.RecoveryCancelled, Payee: caller, Amount: refund})

	m.request = Request{}
	m.resetVotes()
	return nil
}

// CompleteRecovery finishes the active request: after the waiting period,
// with an unchanged wallet and a proof that verifies against the key at
// index, the candidate is added as a wallet owner. Preconditions are checked
// in a fixed order and the first failing one is reported.
func (m *Module) CompleteRecovery(caller interfaces.Address, proof *verifier.Proof, index int, payment *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.request.Active {
		return ErrNotStarted
	}
	if _, err := m.verifier.Key(index); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	if err := m.requireNonOwner(caller); err != nil {
		return err
	}
	if caller != m.request.Candidate {
		return ErrCallerMismatch
	}
	if !m.paid(payment) {
		return ErrInsufficientPayment
	}
	now, err := m.clock.Now()
	if err != nil {
		return fmt.Errorf("failed to read ledger time: %w", err)
	}
	if now < m.request.ReadyAt {
		return fmt.Errorf("%w: ready at %d, now %d", ErrTooEarly, m.request.ReadyAt, now)
	}

	nonce, err := m.wallet.MutationNonce()
	if err != nil {
		return fmt.Errorf("failed to read wallet nonce: %w", err)
	}
	if nonce != m.request.WalletNonce {
		return ErrWalletHadActivity
	}

	if proof == nil {
		return ErrProofNotVerified
	}
	ok, err := m.verifier.Verify(proof, proof.Inputs, index)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	if !ok {
		m.log.Warn("Recovery proof rejected",
			slog.String("candidate", caller.String()),
			slog.Int("index", index))
		return ErrProofNotVerified
	}

	candidate := m.request.Candidate
	if err := m.wallet.AddOwner(candidate); err != nil {
		return fmt.Errorf("failed to add owner to wallet: %w", err)
	}

	// The key was resolved above under the same lock, so this cannot fail.
	if _, err := m.keys.Invalidate(index); err != nil {
		m.log.Error("Failed to invalidate consumed verifying key", "err", err, slog.Int("index", index))
	}
	m.receive(payment)

	m.log.Info("Recovery completed",
		slog.String("candidate", candidate.String()),
		slog.Int("index", index))
	m.emit(interfaces.Event{Kind: interfaces.KeyInvalidated, Index: index})
	m.emit(interfaces.Event{Kind: interfaces.RecoveryCompleted, Candidate: candidate})

	m.request = Request{}
	m.resetVotes()
	return nil
}

// State reports the lifecycle stage at the current ledger time.
func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// stateLocked reports AwaitingWindow while ledger time is unavailable, since
// the window cannot be shown to have elapsed.
func (m *Module) stateLocked() State {
	if !m.request.Active {
		return StateIdle
	}
	now, err := m.clock.Now()
	if err != nil {
		m.log.Warn("Failed to read ledger time", "err", err)
		return StateAwaitingWindow
	}
	if now < m.request.ReadyAt {
		return StateAwaitingWindow
	}
	return StateResolvable
}

// Request returns a copy of the current recovery request.
func (m *Module) Request() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.request.clone()
}

// Votes returns the owners who voted to cancel, in voting order.
func (m *Module) Votes() []interfaces.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.Address(nil), m.voteOrder...)
}

// Balance returns the funds held by the module.
func (m *Module) Balance() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance)
}

// Events returns the journal of emitted events.
func (m *Module) Events() []interfaces.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.Event(nil), m.events...)
}

// RequiredDeposit returns the configured minimum payment.
func (m *Module) RequiredDeposit() *big.Int {
	return new(big.Int).Set(m.requiredDeposit)
}

// WaitingPeriod returns the configured delay in seconds.
func (m *Module) WaitingPeriod() uint64 {
	return m.waitingPeriod
}

// Wallet returns the address of the protected wallet.
func (m *Module) Wallet() interfaces.Address {
	return m.wallet.Address()
}

func (m *Module) paid(payment *big.Int) bool {
	return payment != nil && payment.Cmp(m.requiredDeposit) >= 0
}

func (m *Module) receive(payment *big.Int) {
	if payment != nil && payment.Sign() > 0 {
		m.balance.Add(m.balance, payment)
	}
}

func (m *Module) requireOwner(caller interfaces.Address) error {
	owner, err := m.wallet.IsOwner(caller)
	if err != nil {
		return fmt.Errorf("failed to query wallet owners: %w", err)
	}
	if !owner {
		return ErrCallerNotOwner
	}
	return nil
}

func (m *Module) requireNonOwner(caller interfaces.Address) error {
	owner, err := m.wallet.IsOwner(caller)
	if err != nil {
		return fmt.Errorf("failed to query wallet owners: %w", err)
	}
	if owner {
		return ErrCallerIsOwner
	}
	return nil
}

func (m *Module) resetVotes() {
	m.votes = make(map[interfaces.Address]struct{})
	m.voteOrder = nil
}

// emit stamps, journals and forwards an event. Callers hold m.mu.
func (m *Module) emit(ev interfaces.Event) {
	m.seq++
	ev.Seq = m.seq
	ev.Wallet = m.wallet.Address()
	m.events = append(m.events, ev)
	if m.sink != nil {
		m.sink.Emit(ev)
	}
}
