package application

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/google/uuid"
)

const maxFileNameLength = 255

var errNoBlobStore = errors.New("file storage is not configured")

// UploadFile stores the content under a fresh uuid key and records its metadata.
// Content beyond the configured size limit is rejected as invalid input.
func (s *Service) UploadFile(ctx context.Context, ownerID uint, name, contentType string, r io.Reader) (domain.File, error) {
	if s.blobs == nil {
		return domain.File{}, errNoBlobStore
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return domain.File{}, invalidf("file name is required")
	}
	if len(name) > maxFileNameLength {
		return domain.File{}, invalidf("file name is longer than %d bytes", maxFileNameLength)
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := uuid.NewString()
	size, err := s.blobs.Put(ctx, key, r, s.maxUpload)
	if err != nil {
		return domain.File{}, err
	}
	f, err := s.repo.CreateFile(ctx, domain.File{
		OwnerID:     ownerID,
		StorageKey:  key,
		Name:        name,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, key)
		return domain.File{}, err
	}
	s.record(ctx, ownerID, "files.upload", "file", f.ID, name)
	return f, nil
}

// OpenFile returns the metadata and a reader the caller must close.
func (s *Service) OpenFile(ctx context.Context, fileID uint) (domain.File, io.ReadCloser, error) {
	if s.blobs == nil {
		return domain.File{}, nil, errNoBlobStore
	}
	f, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		return domain.File{}, nil, err
	}
	rc, err := s.blobs.Open(ctx, f.StorageKey)
	if err != nil {
		return domain.File{}, nil, err
	}
	return f, rc, nil
}

func (s *Service) DeleteFile(ctx context.Context, userID, fileID uint) error {
	f, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.OwnerID != userID {
		return forbiddenf("only the owner can delete a file")
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	s.record(ctx, userID, "files.delete", "file", fileID, f.Name)
	return nil
}

func (s *Service) requireOwnedFile(ctx context.Context, userID, fileID uint) error {
	f, err := s.repo.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return invalidf("attached file does not exist")
		}
		return err
	}
	if f.OwnerID != userID {
		return forbiddenf("attached file belongs to another user")
	}
	return nil
}
