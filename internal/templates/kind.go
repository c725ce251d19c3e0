package templates

import (
	"fmt"
	"strings"
)

// Kind identifies a pool template of one exchange integration.
type Kind int

const (
	QuickswapPair Kind = iota + 1
	SushiswapPair
	ComethPair
)

var kindNames = map[Kind]string{
	QuickswapPair: "QuickswapPair",
	SushiswapPair: "SushiswapPair",
	ComethPair:    "ComethPair",
}

var providerNames = map[Kind]string{
	QuickswapPair: "quickswap",
	SushiswapPair: "sushiswap",
	ComethPair:    "cometh",
}

// Kinds lists every known template kind.
func Kinds() []Kind {
	return []Kind{QuickswapPair, SushiswapPair, ComethPair}
}

// String returns the template name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ProviderName returns the pool provider tag stored on positions.
func (k Kind) ProviderName() string {
	return providerNames[k]
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind resolves a template name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	for kind, kindName := range kindNames {
		if strings.EqualFold(kindName, strings.TrimSpace(name)) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown template %q", name)
}
