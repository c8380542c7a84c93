// Package attachments stores activity attachment files on the local disk or on S3.
package attachments

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/bitdevs/estudos/core"
)

var (
	ErrNotFound      = errors.New("attachment not found")
	ErrInvalidName   = errors.New("invalid attachment name")
	ErrUnknownDriver = errors.New("unknown attachments driver")
)

// Driver stores files under flat names.
type Driver interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

// New returns the driver selected by conf.Driver ("local" when empty).
func New(conf core.AttachmentsConfig) (Driver, error) {
	switch conf.Driver {
	case "local", "":
		return NewLocal(conf.Dir)
	case "s3":
		return NewS3(conf)
	}
	return nil, errors.Wrapf(ErrUnknownDriver, "%q", conf.Driver)
}

// checkName rejects names that are empty or would leave the attachments area.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name != path.Clean(name) || name == "." || name == ".." {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}
