package config

type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Postgres:
		return "postgres"
	}
	return "unknown"
}

// ParseStorageDriver maps a config value back to a StorageDriver.
func ParseStorageDriver(name string) (StorageDriver, bool) {
	switch name {
	case "", "postgres", "postgresql":
		return Postgres, true
	}
	return 0, false
}
