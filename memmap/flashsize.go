package memmap

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFlashSize parses a flash size such as "4MB", "512KB", "0x400000"
// or "4194304" into bytes. The empty string yields 0.
func ParseFlashSize(s string) (uint64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, nil
	}

	mult := uint64(1)
	switch {
	case strings.HasSuffix(v, "MB"):
		mult, v = 1<<20, strings.TrimSuffix(v, "MB")
	case strings.HasSuffix(v, "KB"):
		mult, v = 1<<10, strings.TrimSuffix(v, "KB")
	case strings.HasSuffix(v, "M"):
		mult, v = 1<<20, strings.TrimSuffix(v, "M")
	case strings.HasSuffix(v, "K"):
		mult, v = 1<<10, strings.TrimSuffix(v, "K")
	}
	v = strings.TrimSpace(v)

	n, err := strconv.ParseUint(strings.ToLower(v), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid flash size %q", s)
	}
	if mult > 1 && n > (1<<32)/mult {
		return 0, fmt.Errorf("flash size %q too large", s)
	}
	return n * mult, nil
}

// FormatFlashSize renders bytes as "4MB" when MiB aligned, else hex.
func FormatFlashSize(n uint64) string {
	if n > 0 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("0x%X", n)
}
