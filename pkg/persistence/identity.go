package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

const IdentityFilePrefix = "identity"

// Identity is what a client needs to resume its session after a restart.
type Identity struct {
	ClientID zookeeper.ClientID
	Hosts    string
	SavedAt  time.Time
}

// IdentityStore keeps session identities on disk, one file per name, following the
// naming convention "{directory}/identity_{name}". Each file holds a protobuf
// encoded google.protobuf.Struct.
type IdentityStore struct {
	// mu protects the files in dir from concurrent writers within the process.
	mu  *sync.Mutex
	dir string
}

func NewIdentityStore(dir string) (*IdentityStore, error) {
	// Make sure to trim any trailing slashes if the provided path contains one.
	dir = strings.TrimSuffix(dir, "/")

	fileInfo, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fileInfo.IsDir() {
		return nil, fmt.Errorf("file path does not point to a directory")
	}
	return &IdentityStore{
		mu:  &sync.Mutex{},
		dir: dir,
	}, nil
}

func (s *IdentityStore) fileName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid identity name %q", name)
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s", IdentityFilePrefix, name)), nil
}

// Save writes the identity under name, replacing any previous one. The file is
// renamed into place so a reader never sees a partial write.
func (s *IdentityStore) Save(name string, identity Identity) error {
	fileName, err := s.fileName(name)
	if err != nil {
		return err
	}
	if identity.SavedAt.IsZero() {
		identity.SavedAt = time.Now()
	}

	st, err := structpb.NewStruct(map[string]any{
		"session_id": zookeeper.FormatSessionID(identity.ClientID.ID),
		"password":   zookeeper.FormatPassword(identity.ClientID.Passwd),
		"hosts":      identity.Hosts,
		"saved_at":   identity.SavedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("error building identity: %w", err)
	}
	bytes, err := proto.Marshal(st)
	if err != nil {
		return fmt.Errorf("error marshalling identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := fileName + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o600); err != nil {
		return fmt.Errorf("error writing identity to file: %w", err)
	}
	if err := os.Rename(tmp, fileName); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error replacing identity file: %w", err)
	}
	return nil
}

// Load reads the identity saved under name. The error wraps os.ErrNotExist when
// nothing was saved.
func (s *IdentityStore) Load(name string) (Identity, error) {
	fileName, err := s.fileName(name)
	if err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	bytes, err := os.ReadFile(fileName)
	s.mu.Unlock()
	if err != nil {
		return Identity{}, fmt.Errorf("error reading identity: %w", err)
	}

	st := &structpb.Struct{}
	if err := proto.Unmarshal(bytes, st); err != nil {
		return Identity{}, fmt.Errorf("error unmarshalling identity: %w", err)
	}
	fields := st.GetFields()
	id, err := zookeeper.ParseClientID(fields["session_id"].GetStringValue(), fields["password"].GetStringValue())
	if err != nil {
		return Identity{}, err
	}
	savedAt, err := time.Parse(time.RFC3339Nano, fields["saved_at"].GetStringValue())
	if err != nil {
		return Identity{}, fmt.Errorf("invalid saved_at: %w", err)
	}
	return Identity{
		ClientID: id,
		Hosts:    fields["hosts"].GetStringValue(),
		SavedAt:  savedAt,
	}, nil
}

// Remove deletes the identity saved under name. Removing a missing identity is not
// an error.
func (s *IdentityStore) Remove(name string) error {
	fileName, err := s.fileName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
