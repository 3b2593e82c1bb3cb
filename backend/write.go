package backend

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
)

// WriteModule serializes m as LLVM assembly
func WriteModule(w io.Writer, m *ir.Module) error {
	if m == nil {
		return errors.New("nil module")
	}
	buf := bufio.NewWriter(w)
	if _, err := m.WriteTo(buf); err != nil {
		return errors.Wrap(err, "could not serialize module")
	}
	return errors.Wrap(buf.Flush(), "could not flush module")
}

// WriteFile writes m to path as a .ll file, creating parent directories as needed
func WriteFile(path string, m *ir.Module) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.Wrap(err, "could not create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", path)
	}
	if err := WriteModule(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "could not close %s", path)
}
