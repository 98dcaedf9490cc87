package failover

import (
	"context"
	"fmt"
	"net/netip"
)

// RecordTarget is the full desired state of one DNS record. Updates replace
// the record wholesale; there is no read-modify-write.
type RecordTarget struct {
	Kind    string // CNAME or A
	Name    string
	Content string
	TTL     int
}

// RecordProvider is the provider API surface the syncer needs.
type RecordProvider interface {
	// LookupRecordID resolves the provider's opaque id for a record name.
	LookupRecordID(ctx context.Context, name string) (string, error)

	// UpdateRecord replaces the record at id with target.
	UpdateRecord(ctx context.Context, id string, target RecordTarget) error
}

type SyncerOpts struct {
	Provider RecordProvider

	// Alias is the switched CNAME record name. The TTL written on each
	// update travels with the push, since each uplink carries its own.
	Alias string

	// DynamicRecord, when set, is the A record pinned to the current
	// external address.
	DynamicRecord string
	DynamicTTL    int
}

// Syncer pushes desired record state to the provider. Record ids are looked
// up once at startup and reused for the life of the process.
type Syncer struct {
	opts SyncerOpts

	aliasID   string
	dynamicID string

	// lastDynamic is the address most recently pushed to the dynamic
	// record. It only advances on success.
	lastDynamic netip.Addr
}

func NewSyncer(opts SyncerOpts) *Syncer {
	return &Syncer{opts: opts}
}

func (s *Syncer) Alias() string         { return s.opts.Alias }
func (s *Syncer) DynamicRecord() string { return s.opts.DynamicRecord }

// ResolveAlias caches the provider id of the alias record.
func (s *Syncer) ResolveAlias(ctx context.Context) error {
	id, err := s.opts.Provider.LookupRecordID(ctx, s.opts.Alias)
	if err != nil {
		return fmt.Errorf("lookup alias record %s: %w", s.opts.Alias, err)
	}
	s.aliasID = id
	return nil
}

// ResolveDynamic caches the provider id of the dynamic record.
func (s *Syncer) ResolveDynamic(ctx context.Context) error {
	id, err := s.opts.Provider.LookupRecordID(ctx, s.opts.DynamicRecord)
	if err != nil {
		return fmt.Errorf("lookup dynamic record %s: %w", s.opts.DynamicRecord, err)
	}
	s.dynamicID = id
	return nil
}

// PushAlias points the alias record at target with the given TTL. Pushing
// the same target twice issues two identical updates; the provider treats
// both the same.
func (s *Syncer) PushAlias(ctx context.Context, target string, ttl int) error {
	rec := RecordTarget{Kind: "CNAME", Name: s.opts.Alias, Content: target, TTL: ttl}
	if err := s.opts.Provider.UpdateRecord(ctx, s.aliasID, rec); err != nil {
		return fmt.Errorf("update alias record %s -> %s: %w", s.opts.Alias, target, err)
	}
	return nil
}

// PushDynamic points the dynamic record at addr. Returns false without
// touching the provider when addr matches the last pushed address. The
// baseline only advances on success so a failed push retries next tick.
func (s *Syncer) PushDynamic(ctx context.Context, addr netip.Addr) (bool, error) {
	if addr == s.lastDynamic {
		return false, nil
	}

	rec := RecordTarget{Kind: "A", Name: s.opts.DynamicRecord, Content: addr.String(), TTL: s.opts.DynamicTTL}
	if err := s.opts.Provider.UpdateRecord(ctx, s.dynamicID, rec); err != nil {
		return false, fmt.Errorf("update dynamic record %s -> %s: %w", s.opts.DynamicRecord, addr, err)
	}
	s.lastDynamic = addr
	return true, nil
}
