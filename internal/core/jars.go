package core

import (
	"fmt"
	"strings"
)

const (
	NEC  JarCode = "NEC"
	FFA  JarCode = "FFA"
	LTSS JarCode = "LTSS"
	EDU  JarCode = "EDU"
	PLAY JarCode = "PLAY"
	GIVE JarCode = "GIVE"
)

type (
	// JarCode identifies one of the six jars.
	JarCode string

	// JarDefinition is the compiled-in description of a jar.
	JarDefinition struct {
		Code        JarCode `json:"code"`
		Percentage  int     `json:"percentage"`
		Name        string  `json:"name"`
		NameEn      string  `json:"nameEn"`
		Description string  `json:"description"`
	}
)

var catalog = [...]JarDefinition{
	{Code: NEC, Percentage: 55, Name: "Thiết yếu", NameEn: "Necessities", Description: "Chi phí sinh hoạt thiết yếu hàng ngày"},
	{Code: FFA, Percentage: 10, Name: "Tự do tài chính", NameEn: "Financial Freedom", Description: "Đầu tư để tạo thu nhập thụ động"},
	{Code: LTSS, Percentage: 10, Name: "Tiết kiệm dài hạn", NameEn: "Long-term Savings", Description: "Tiết kiệm cho các mục tiêu lớn"},
	{Code: EDU, Percentage: 10, Name: "Giáo dục", NameEn: "Education", Description: "Đầu tư vào bản thân"},
	{Code: PLAY, Percentage: 10, Name: "Giải trí", NameEn: "Play", Description: "Thưởng cho bản thân"},
	{Code: GIVE, Percentage: 5, Name: "Từ thiện", NameEn: "Give", Description: "Giúp đỡ người khác"},
}

// Definitions returns the six jars in catalog order.
func Definitions() []JarDefinition {
	out := make([]JarDefinition, len(catalog))
	copy(out, catalog[:])
	return out
}

// Codes returns the jar codes in catalog order.
func Codes() []JarCode {
	out := make([]JarCode, len(catalog))
	for i, d := range catalog {
		out[i] = d.Code
	}
	return out
}

// ByCode looks up a jar definition. Unknown codes return ErrUnknownJar.
func ByCode(code JarCode) (JarDefinition, error) {
	for _, d := range catalog {
		if d.Code == code {
			return d, nil
		}
	}
	return JarDefinition{}, fmt.Errorf("%w: %q", ErrUnknownJar, string(code))
}

// ParseJarCode normalizes user input ("nec", " Play ") to a catalog code.
func ParseJarCode(s string) (JarCode, error) {
	code := JarCode(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := ByCode(code); err != nil {
		return "", err
	}
	return code, nil
}

func (c JarCode) Valid() bool {
	_, err := ByCode(c)
	return err == nil
}

func (c JarCode) String() string {
	return string(c)
}

// CatalogIndex returns the position of code in the catalog, or -1.
func CatalogIndex(code JarCode) int {
	for i, d := range catalog {
		if d.Code == code {
			return i
		}
	}
	return -1
}
