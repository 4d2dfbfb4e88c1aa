package password

import "errors"

// Migrating hashes with Current and still verifies hashes produced by any
// of Legacy. Hashes that only a legacy hasher recognizes report
// NeedsUpgrade, so they move to Current on the next successful login.
type Migrating struct {
	Current Hasher
	Legacy  []Hasher
}

// NewMigrating returns a Migrating hasher. Nil legacy entries are skipped.
func NewMigrating(current Hasher, legacy ...Hasher) *Migrating {
	m := &Migrating{Current: current}
	for _, h := range legacy {
		if h != nil {
			m.Legacy = append(m.Legacy, h)
		}
	}
	return m
}

func (m *Migrating) Hash(password string) (string, error) {
	return m.Current.Hash(password)
}

func (m *Migrating) Verify(password, encoded string) (bool, error) {
	ok, err := m.Current.Verify(password, encoded)
	if !errors.Is(err, ErrUnsupportedHash) {
		return ok, err
	}
	for _, h := range m.Legacy {
		ok, err = h.Verify(password, encoded)
		if !errors.Is(err, ErrUnsupportedHash) {
			return ok, err
		}
	}
	return false, ErrUnsupportedHash
}

func (m *Migrating) NeedsUpgrade(encoded string) (bool, error) {
	needs, err := m.Current.NeedsUpgrade(encoded)
	if !errors.Is(err, ErrUnsupportedHash) {
		return needs, err
	}
	for _, h := range m.Legacy {
		if _, err := h.NeedsUpgrade(encoded); !errors.Is(err, ErrUnsupportedHash) {
			return err == nil, err
		}
	}
	return false, ErrUnsupportedHash
}
