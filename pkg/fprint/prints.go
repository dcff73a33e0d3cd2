package fprint

import (
	"fmt"
	"os"
	"path/filepath"

	"fprint/internal/corerr"
	"fprint/internal/template"
)

// FingerID identifies one of the ten fingers a print can be enrolled
// against. 0x0 is reserved (spec.md §6); valid ids are [1, 10].
type FingerID uint8

const (
	minFingerID FingerID = 1
	maxFingerID FingerID = 10
)

// Valid reports whether id is a usable, non-reserved finger id.
func (id FingerID) Valid() bool { return id >= minFingerID && id <= maxFingerID }

// printsRoot returns $HOME/.fprint/prints, the root of spec.md §6's
// discovery directory layout.
func printsRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".fprint", "prints"), nil
}

// fingerDir returns $HOME/.fprint/prints/<driver-id hex4>/<devtype hex8>/<finger-id hex1>.
func fingerDir(driverID uint16, devtype uint32, finger FingerID) (string, error) {
	if !finger.Valid() {
		return "", corerr.EINVAL
	}
	root, err := printsRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root,
		fmt.Sprintf("%04x", driverID),
		fmt.Sprintf("%08x", devtype),
		fmt.Sprintf("%01x", uint8(finger)),
	), nil
}

// printPath is the single stored-print file within a finger's directory.
func printPath(driverID uint16, devtype uint32, finger FingerID) (string, error) {
	dir, err := fingerDir(driverID, devtype, finger)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "print"), nil
}

// SavePrint serializes sp and writes it to the discovery-directory path for
// (driverID, devtype, finger), creating the directory (mode 0700) if
// needed per spec.md §6.
func SavePrint(driverID uint16, devtype uint32, finger FingerID, sp *template.StoredPrint) error {
	dir, err := fingerDir(driverID, devtype, finger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create print directory: %w", err)
	}
	path, err := printPath(driverID, devtype, finger)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, sp.Serialize(), 0600); err != nil {
		return fmt.Errorf("write stored print: %w", err)
	}
	return nil
}

// LoadPrint reads and parses the stored print at the discovery-directory
// path for (driverID, devtype, finger).
func LoadPrint(driverID uint16, devtype uint32, finger FingerID) (*template.StoredPrint, error) {
	path, err := printPath(driverID, devtype, finger)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, corerr.ENOENT
		}
		return nil, fmt.Errorf("read stored print: %w", err)
	}
	return template.Parse(data)
}
