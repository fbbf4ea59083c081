// Package objectstore provides a NATS JetStream-backed implementation of
// the audio store, for deployments that share generated audio across hosts.
package objectstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/audio"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const defaultExtension = ".mp3"

// NatsAudioStore implements core.AudioStore on a NATS object store bucket.
type NatsAudioStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket if it does not exist, or binds to it if it does.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsAudioStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Generated audio for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsAudioStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Save stores the audio bytes under a generated key and returns the key.
func (n *NatsAudioStore) Save(data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", audio.ErrEmptyAudioData
	}

	if ext == "" {
		ext = defaultExtension
	}

	key := uuid.NewString() + ext

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return key, nil
}

// Open reads a stored audio object back in full.
func (n *NatsAudioStore) Open(name string) ([]byte, error) {
	obj, err := n.store.Get(name)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", audio.ErrAudioNotFound, name)
		}

		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", name, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", name, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", name, closeErr)
	}

	return data, nil
}

// Delete removes a stored audio object.
func (n *NatsAudioStore) Delete(name string) error {
	err := n.store.Delete(name)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", audio.ErrAudioNotFound, name)
		}

		return fmt.Errorf("failed to delete object '%s' from bucket '%s': %w", name, n.bucket, err)
	}

	return nil
}

// List returns the keys of every stored audio object. An empty bucket is
// not an error.
func (n *NatsAudioStore) List() ([]string, error) {
	infos, err := n.store.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("failed to list objects in bucket '%s': %w", n.bucket, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}

	return names, nil
}
