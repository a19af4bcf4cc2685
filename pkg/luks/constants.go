package luks

import "path/filepath"

// mapperDir is where the device-mapper exposes opened volumes.
const mapperDir = "/dev/mapper"

// MapperPath returns the decrypted mapping path for a mapping name.
func MapperPath(name string) string {
	return filepath.Join(mapperDir, name)
}
