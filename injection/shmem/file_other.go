// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package shmem

const DefaultDir = ""

// FileProvider is only available on unix platforms.
type FileProvider struct{}

func NewFileProvider(dir string) (*FileProvider, error) {
	return nil, ErrUnsupported
}

func (p *FileProvider) Dir() string {
	return ""
}

func (p *FileProvider) GetOrCreate(name string, size uintptr, init InitFunc) (*Segment, bool, error) {
	return nil, false, ErrUnsupported
}

func (p *FileProvider) Remove(name string) error {
	return ErrUnsupported
}
