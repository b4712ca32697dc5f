package store

import (
	"fmt"
	"sync"

	"paychan/db"
	"paychan/errors"
	"paychan/jsonx"
	"paychan/logx"
	"paychan/types"
)

// ChannelStore is the sole authoritative holder of all channel records
// for this process. All mutation goes through Update, which serializes
// writers per channel id: two concurrent payments on the same channel can
// never both read nonce N and both write N+1, while operations on
// different channels do not block each other.
//
// Persistence is write-through: the in-memory map is authoritative and
// the db provider is updated inside the per-channel critical section, so
// a restart recovers the last fully-committed state.
type ChannelStore struct {
	mu         sync.RWMutex // guards channels and locks maps
	channels   map[string]*types.Channel
	locks      map[string]*sync.Mutex
	dbProvider db.DatabaseProvider
}

// NewChannelStore creates a store and reloads persisted channels when the
// provider supports iteration.
func NewChannelStore(dbProvider db.DatabaseProvider) (*ChannelStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	cs := &ChannelStore{
		channels:   make(map[string]*types.Channel),
		locks:      make(map[string]*sync.Mutex),
		dbProvider: dbProvider,
	}

	if iterable, ok := dbProvider.(db.IterableProvider); ok {
		err := iterable.IteratePrefix([]byte(PrefixChannel), func(key, value []byte) bool {
			var ch types.Channel
			if err := jsonx.Unmarshal(value, &ch); err != nil {
				logx.Warn("CHANNEL_STORE", fmt.Sprintf("Skipping unreadable channel record %s: %v", key, err))
				return true
			}
			cs.channels[ch.ID] = &ch
			cs.locks[ch.ID] = &sync.Mutex{}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reload channels: %w", err)
		}
	}

	return cs, nil
}

func (cs *ChannelStore) getDbKey(id string) []byte {
	return []byte(PrefixChannel + id)
}

func (cs *ChannelStore) persist(ch *types.Channel) error {
	data, err := jsonx.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to marshal channel: %w", err)
	}
	if err := cs.dbProvider.Put(cs.getDbKey(ch.ID), data); err != nil {
		return fmt.Errorf("failed to write channel to db: %w", err)
	}
	return nil
}

// Insert adds a new channel; fails when the id is already present
func (cs *ChannelStore) Insert(ch *types.Channel) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.channels[ch.ID]; exists {
		return errors.NewError(errors.ErrCodeDuplicateChannel, errors.ErrMsgDuplicateChannel)
	}

	stored := ch.Clone()
	if err := cs.persist(stored); err != nil {
		return err
	}

	cs.channels[stored.ID] = stored
	cs.locks[stored.ID] = &sync.Mutex{}
	return nil
}

// Get returns a deep copy of the channel; callers can never mutate stored
// state through the returned value.
func (cs *ChannelStore) Get(id string) (*types.Channel, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	ch, ok := cs.channels[id]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeChannelNotFound, errors.ErrMsgChannelNotFound)
	}
	return ch.Clone(), nil
}

// Update runs mutate inside the channel's critical section. The mutator
// works on a clone: when it (or persistence) fails, the stored channel is
// untouched, which makes partial mutation structurally impossible. The
// mutator may perform blocking work (the signature step happens here so
// no two payments are ever signed against the same prior state).
func (cs *ChannelStore) Update(id string, mutate func(ch *types.Channel) error) (*types.Channel, error) {
	cs.mu.RLock()
	lock, ok := cs.locks[id]
	cs.mu.RUnlock()
	if !ok {
		return nil, errors.NewError(errors.ErrCodeChannelNotFound, errors.ErrMsgChannelNotFound)
	}

	lock.Lock()
	defer lock.Unlock()

	cs.mu.RLock()
	current, ok := cs.channels[id]
	cs.mu.RUnlock()
	if !ok {
		return nil, errors.NewError(errors.ErrCodeChannelNotFound, errors.ErrMsgChannelNotFound)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	if err := cs.persist(next); err != nil {
		return nil, err
	}

	cs.mu.Lock()
	cs.channels[id] = next
	cs.mu.Unlock()

	return next.Clone(), nil
}

// ListBySender returns copies of all channels with the given sender
func (cs *ChannelStore) ListBySender(sender string) []*types.Channel {
	return cs.filter(func(ch *types.Channel) bool { return ch.Sender == sender })
}

// ListByRecipient returns copies of all channels with the given recipient
func (cs *ChannelStore) ListByRecipient(recipient string) []*types.Channel {
	return cs.filter(func(ch *types.Channel) bool { return ch.Recipient == recipient })
}

// ListOpen returns copies of all channels currently in the open state
func (cs *ChannelStore) ListOpen() []*types.Channel {
	return cs.filter(func(ch *types.Channel) bool { return ch.State == types.ChannelStateOpen })
}

// List returns copies of all channels
func (cs *ChannelStore) List() []*types.Channel {
	return cs.filter(func(*types.Channel) bool { return true })
}

func (cs *ChannelStore) filter(keep func(*types.Channel) bool) []*types.Channel {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make([]*types.Channel, 0)
	for _, ch := range cs.channels {
		if keep(ch) {
			out = append(out, ch.Clone())
		}
	}
	return out
}

// OpenCount returns the number of open channels (metrics)
func (cs *ChannelStore) OpenCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	n := 0
	for _, ch := range cs.channels {
		if ch.State == types.ChannelStateOpen {
			n++
		}
	}
	return n
}

// MustClose closes the underlying provider, logging any error
func (cs *ChannelStore) MustClose() {
	if err := cs.dbProvider.Close(); err != nil {
		logx.Error("CHANNEL_STORE", "Failed to close db provider:", err)
	}
}
