package relevance

import "strings"

// Platform is the canonical identifier for a gaming platform. Listing titles
// and user queries refer to platforms through a wide set of aliases and
// misspellings; everything funnels through this one lookup table so alias
// resolution stays a single pure function.
type Platform string

const (
	PlatformSwitch     Platform = "switch"
	PlatformSwitch2    Platform = "switch 2"
	PlatformPS5        Platform = "ps5"
	PlatformPS4        Platform = "ps4"
	PlatformPS3        Platform = "ps3"
	PlatformPS2        Platform = "ps2"
	PlatformPS1        Platform = "ps1"
	PlatformPSP        Platform = "psp"
	PlatformVita       Platform = "ps vita"
	PlatformXboxSeries Platform = "xbox series"
	PlatformXboxOne    Platform = "xbox one"
	PlatformXbox360    Platform = "xbox 360"
	PlatformXbox       Platform = "xbox"
	PlatformWiiU       Platform = "wii u"
	PlatformWii        Platform = "wii"
	Platform3DS        Platform = "3ds"
	PlatformDS         Platform = "ds"
	PlatformGameCube   Platform = "gamecube"
	PlatformN64        Platform = "n64"
	PlatformSNES       Platform = "snes"
	PlatformNES        Platform = "nes"
	PlatformGameBoy    Platform = "game boy"
	PlatformGBA        Platform = "gba"
	PlatformMegaDrive  Platform = "mega drive"
	PlatformDreamcast  Platform = "dreamcast"
	PlatformSaturn     Platform = "saturn"
	PlatformPC         Platform = "pc"
)

type platformAlias struct {
	alias    string
	platform Platform
}

// multiWordAliases are matched as phrases before single-word aliases so that
// "xbox series x" resolves to xbox series instead of double-counting as
// "xbox" plus a stray token. Longer phrases come first.
var multiWordAliases = []platformAlias{
	{"nintendo switch 2", PlatformSwitch2},
	{"nintendo switch oled", PlatformSwitch},
	{"nintendo switch lite", PlatformSwitch},
	{"nintendo switch", PlatformSwitch},
	{"switch oled", PlatformSwitch},
	{"switch lite", PlatformSwitch},
	{"switch 2", PlatformSwitch2},
	{"playstation 5", PlatformPS5},
	{"playstation 4", PlatformPS4},
	{"playstation 3", PlatformPS3},
	{"playstation 2", PlatformPS2},
	{"playstation 1", PlatformPS1},
	{"playstation vita", PlatformVita},
	{"playstation portable", PlatformPSP},
	{"ps vita", PlatformVita},
	{"xbox series x", PlatformXboxSeries},
	{"xbox series s", PlatformXboxSeries},
	{"xbox series", PlatformXboxSeries},
	{"xbox one x", PlatformXboxOne},
	{"xbox one s", PlatformXboxOne},
	{"xbox one", PlatformXboxOne},
	{"xbox 360", PlatformXbox360},
	{"wii u", PlatformWiiU},
	{"nintendo wii u", PlatformWiiU},
	{"nintendo wii", PlatformWii},
	{"nintendo 3ds", Platform3DS},
	{"new 3ds", Platform3DS},
	{"nintendo ds", PlatformDS},
	{"nintendo 64", PlatformN64},
	{"super nintendo", PlatformSNES},
	{"game boy advance", PlatformGBA},
	{"game boy color", PlatformGameBoy},
	{"game boy", PlatformGameBoy},
	{"game cube", PlatformGameCube},
	{"mega drive", PlatformMegaDrive},
	{"sega saturn", PlatformSaturn},
	{"sega dreamcast", PlatformDreamcast},
}

// singleWordAliases covers compact spellings and the common typos seen in
// real queries (swicth, swich, plastation...).
var singleWordAliases = map[string]Platform{
	"switch":      PlatformSwitch,
	"swicth":      PlatformSwitch,
	"swich":       PlatformSwitch,
	"swtich":      PlatformSwitch,
	"ns":          PlatformSwitch,
	"ps5":         PlatformPS5,
	"ps4":         PlatformPS4,
	"ps3":         PlatformPS3,
	"ps2":         PlatformPS2,
	"ps1":         PlatformPS1,
	"psx":         PlatformPS1,
	"psone":       PlatformPS1,
	"psp":         PlatformPSP,
	"vita":        PlatformVita,
	"playstation": PlatformPS4,
	"plastation":  PlatformPS4,
	"xbox":        PlatformXbox,
	"xbone":       PlatformXboxOne,
	"wiiu":        PlatformWiiU,
	"wii":         PlatformWii,
	"3ds":         Platform3DS,
	"2ds":         Platform3DS,
	"gamecube":    PlatformGameCube,
	"ngc":         PlatformGameCube,
	"n64":         PlatformN64,
	"snes":        PlatformSNES,
	"nes":         PlatformNES,
	"gameboy":     PlatformGameBoy,
	"gba":         PlatformGBA,
	"gbc":         PlatformGameBoy,
	"megadrive":   PlatformMegaDrive,
	"dreamcast":   PlatformDreamcast,
	"saturn":      PlatformSaturn,
	"pc":          PlatformPC,
	"steam":       PlatformPC,
}

// CanonicalPlatform resolves a single lowercased token to its canonical
// platform. It only consults the single-word table; phrase aliases are
// handled by DetectPlatforms / ExtractKeywords.
func CanonicalPlatform(token string) (Platform, bool) {
	p, ok := singleWordAliases[strings.ToLower(strings.TrimSpace(token))]
	return p, ok
}

// DetectPlatforms returns the canonical platforms mentioned anywhere in the
// given free text, phrase aliases first. The result preserves first-mention
// order and contains no duplicates.
func DetectPlatforms(text string) []Platform {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}

	var found []Platform
	seen := make(map[Platform]bool)
	add := func(p Platform) {
		if !seen[p] {
			seen[p] = true
			found = append(found, p)
		}
	}

	padded := " " + normalized + " "
	for _, a := range multiWordAliases {
		phrase := " " + a.alias + " "
		if strings.Contains(padded, phrase) {
			add(a.platform)
			padded = strings.ReplaceAll(padded, phrase, " ")
		}
	}
	for _, tok := range strings.Fields(padded) {
		if p, ok := singleWordAliases[tok]; ok {
			add(p)
		}
	}
	return found
}

// NormalizeText lowercases, strips punctuation to spaces and collapses
// whitespace. All token comparisons in this package go through it.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x00C0 && r <= 0x024F: // keep accented latin letters
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
