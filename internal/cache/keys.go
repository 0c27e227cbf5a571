package cache

import (
	"fmt"
	"strings"
)

// UserPrefix — префикс ключей записей пользователей.
const UserPrefix = "User"

// MakeKey собирает ключ вида prefix_part1_part2.
func MakeKey(prefix string, parts ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte('_')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// UserKey — ключ пользователя по идентификатору.
func UserKey(id string) string {
	return MakeKey(UserPrefix, id)
}

// UserSequenceKey — ключ пользователя по порядковому номеру.
// Делит пространство User_ с UserKey: ключи не пересекаются, пока
// идентификаторы пользователей являются UUID и не бывают числами.
func UserSequenceKey(seq int64) string {
	return MakeKey(UserPrefix, seq)
}
