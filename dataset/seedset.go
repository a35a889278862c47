package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rushteam/activeseg/core"
)

// LoadSeedSet 读取种子集文件：每行一个 image key，空行忽略，行首尾空白去掉。
func LoadSeedSet(path string) ([]core.ImageKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed set: %w", err)
	}
	defer f.Close()

	var keys []core.ImageKey
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		keys = append(keys, core.ImageKey(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed set %s: %w", path, err)
	}
	return keys, nil
}
