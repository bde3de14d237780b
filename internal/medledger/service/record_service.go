package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/token"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
	"github.com/BrandonDHaskell/medledger/internal/metrics"
)

//go:generate mockgen -destination=mocks/mock_minter.go -package=mocks . TokenMinter

var (
	ErrInvalidPointerFormat = store.ErrInvalidPointerFormat
	ErrRecordNotFound       = store.ErrRecordNotFound
	ErrUnauthorized         = errors.New("caller is not authorized for this record")
	ErrMissingCaller        = errors.New("caller identity is required")
	ErrInvalidGrantee       = errors.New("grantee is required")
)

// TokenMinter is the host action that creates the asset token for a record.
type TokenMinter interface {
	MintToken(ctx context.Context, req token.Request) (types.TokenID, error)
}

// Clock supplies the creation timestamp for new records.
type Clock func() time.Time

type Options struct {
	Clock   Clock            // default time.Now().UTC()
	Logger  *log.Logger      // default discards
	Metrics *metrics.Metrics // optional
}

// RecordService is the authorization and mutation facade over the ledger.
// Every check runs in the order existence, authorization, mutation.
type RecordService struct {
	ledger  store.Ledger
	minter  TokenMinter
	audit   store.AuditStore
	clock   Clock
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewRecordService(ledger store.Ledger, minter TokenMinter, audit store.AuditStore, opts Options) *RecordService {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &RecordService{
		ledger:  ledger,
		minter:  minter,
		audit:   audit,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Mint stores a new record owned by caller and returns the id of the token
// minted for it.  The token is created inside the record transaction; if it
// fails nothing is stored and no identifier is consumed.
func (s *RecordService) Mint(ctx context.Context, caller types.Identity, pointer string) (types.TokenID, error) {
	caller = normalize(caller)
	if caller == "" {
		return 0, ErrMissingCaller
	}

	var tokenErr error
	id, tokenID, err := s.ledger.Mint(ctx, caller, pointer, s.clock(),
		func(ctx context.Context, _ types.RecordID, e types.RecordEntry) (types.TokenID, error) {
			tid, err := s.minter.MintToken(ctx, token.Request{Creator: e.Owner, URL: e.ContentPointer})
			if err != nil {
				tokenErr = fmt.Errorf("mint token: %w", err)
				return 0, tokenErr
			}
			return tid, nil
		})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPointerFormat):
			s.decide(ctx, store.ActionMint, caller, nil, "", false, "invalid_pointer_format", metrics.OutcomeInvalid)
		case tokenErr != nil:
			s.logger.Printf("mint: caller=%s token failure: %v", caller, tokenErr)
			s.decide(ctx, store.ActionMint, caller, nil, "", false, "token_failure", metrics.OutcomeTokenFailure)
		default:
			s.logger.Printf("mint: caller=%s store error: %v", caller, err)
			s.metrics.ObserveOperation(store.ActionMint, metrics.OutcomeError)
		}
		return 0, err
	}

	s.decide(ctx, store.ActionMint, caller, &id, "", true, "minted", metrics.OutcomeOK)
	return tokenID, nil
}

// GrantAccess appends grantee to the record's access list.  Only the owner
// may grant.  Duplicate grants are appended again.
func (s *RecordService) GrantAccess(ctx context.Context, caller types.Identity, id types.RecordID, grantee types.Identity) error {
	caller = normalize(caller)
	if caller == "" {
		return ErrMissingCaller
	}
	grantee = normalize(grantee)

	e, err := s.ledger.Get(ctx, id)
	if err != nil {
		s.failedLookup(ctx, store.ActionGrant, caller, id, grantee, err)
		return err
	}

	if caller != e.Owner {
		s.logger.Printf("grant_access denied: caller=%s record=%d", caller, id)
		s.decide(ctx, store.ActionGrant, caller, &id, grantee, false, "not_owner", metrics.OutcomeDenied)
		return ErrUnauthorized
	}

	if grantee == "" {
		s.metrics.ObserveOperation(store.ActionGrant, metrics.OutcomeInvalid)
		return ErrInvalidGrantee
	}

	if err := s.ledger.AppendAccess(ctx, id, grantee); err != nil {
		s.logger.Printf("grant_access: record=%d append error: %v", id, err)
		s.metrics.ObserveOperation(store.ActionGrant, metrics.OutcomeError)
		return err
	}

	s.decide(ctx, store.ActionGrant, caller, &id, grantee, true, "owner", metrics.OutcomeOK)
	return nil
}

// GetRecord returns the full entry to its owner or to anyone on its access
// list.
func (s *RecordService) GetRecord(ctx context.Context, caller types.Identity, id types.RecordID) (types.RecordEntry, error) {
	caller = normalize(caller)
	if caller == "" {
		return types.RecordEntry{}, ErrMissingCaller
	}

	e, err := s.ledger.Get(ctx, id)
	if err != nil {
		s.failedLookup(ctx, store.ActionRead, caller, id, "", err)
		return types.RecordEntry{}, err
	}

	if !e.CanRead(caller) {
		s.logger.Printf("get_record denied: caller=%s record=%d", caller, id)
		s.decide(ctx, store.ActionRead, caller, &id, "", false, "not_on_access_list", metrics.OutcomeDenied)
		return types.RecordEntry{}, ErrUnauthorized
	}

	reason := "grantee"
	if caller == e.Owner {
		reason = "owner"
	}
	s.decide(ctx, store.ActionRead, caller, &id, "", true, reason, metrics.OutcomeOK)
	return e, nil
}

// ListForOwner returns the ids owner has minted, oldest first.  It backs the
// operator CLI and is not part of the HTTP surface.
func (s *RecordService) ListForOwner(ctx context.Context, owner types.Identity) ([]types.RecordID, error) {
	return s.ledger.ListForOwner(ctx, normalize(owner))
}

// NextID returns the identifier the next mint will receive.
func (s *RecordService) NextID(ctx context.Context) (types.RecordID, error) {
	return s.ledger.NextID(ctx)
}

// TokenFor returns the token minted with id.  Token ids are public on the
// host ledger, so no caller check applies.
func (s *RecordService) TokenFor(ctx context.Context, id types.RecordID) (types.TokenID, error) {
	return s.ledger.TokenFor(ctx, id)
}

// TokenSeed returns the first token id a fresh token ledger may hand out:
// one past the highest token committed with a record, and never below base.
// A token minted for a mint that then failed to commit is not counted; it
// was never returned to a caller.
func TokenSeed(ctx context.Context, idx store.TokenIndex, base types.TokenID) (types.TokenID, error) {
	last, ok, err := idx.LastTokenID(ctx)
	if err != nil {
		return 0, fmt.Errorf("token seed: %w", err)
	}
	if !ok || last < base {
		return base, nil
	}
	return last + 1, nil
}

func (s *RecordService) failedLookup(ctx context.Context, action string, caller types.Identity, id types.RecordID, grantee types.Identity, err error) {
	if errors.Is(err, ErrRecordNotFound) {
		s.decide(ctx, action, caller, &id, grantee, false, "record_not_found", metrics.OutcomeNotFound)
		return
	}
	s.logger.Printf("%s: record=%d lookup error: %v", action, id, err)
	s.metrics.ObserveOperation(action, metrics.OutcomeError)
}

// decide counts the outcome and appends it to the audit log.  Audit errors
// are logged and dropped: the log sits outside the record transaction and
// must not change the caller's result.
func (s *RecordService) decide(
	ctx context.Context,
	action string,
	caller types.Identity,
	id *types.RecordID,
	grantee types.Identity,
	allowed bool,
	reason string,
	outcome string,
) {
	s.metrics.ObserveOperation(action, outcome)

	if s.audit == nil {
		return
	}
	rec := store.AuditEventRecord{
		Action:    action,
		Caller:    caller,
		RecordID:  id,
		Grantee:   grantee,
		Allowed:   allowed,
		Reason:    reason,
		DecidedAt: s.clock().UTC(),
	}
	if err := s.audit.RecordEvent(ctx, rec); err != nil {
		s.logger.Printf("audit write failed: action=%s caller=%s: %v", action, caller, err)
	}
}

func normalize(id types.Identity) types.Identity {
	return types.Identity(strings.TrimSpace(string(id)))
}
