package engine

import (
	"fmt"
	"hash/crc32"
	"regexp"
	"strconv"
	"strings"
)

var (
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
	hashToken  = regexp.MustCompile(`\[(?:chunk|content)?hash(?::(\d+))?\]`)
)

// contentHash returns the hex CRC32 (Castagnoli) of data.
func contentHash(data []byte) string {
	return fmt.Sprintf("%08x", crc32.Checksum(data, castagnoli))
}

// expandName fills a file name template. Understood tokens are [name],
// [ext], [id], [hash], [chunkhash], [contenthash] and their [token:N]
// truncations.
func expandName(template, name, ext, id string, data []byte) string {
	out := strings.NewReplacer("[name]", name, "[ext]", ext, "[id]", id).Replace(template)
	if !hashToken.MatchString(out) {
		return out
	}
	hash := contentHash(data)
	return hashToken.ReplaceAllStringFunc(out, func(tok string) string {
		m := hashToken.FindStringSubmatch(tok)
		if n, err := strconv.Atoi(m[1]); err == nil && n < len(hash) {
			return hash[:n]
		}
		return hash
	})
}

// esbuildNames converts an output file name template to esbuild's form:
// every hash token becomes [hash] and the .js extension is dropped, since
// esbuild appends the extension itself.
func esbuildNames(template string) string {
	out := hashToken.ReplaceAllString(template, "[hash]")
	return strings.TrimSuffix(out, ".js")
}
