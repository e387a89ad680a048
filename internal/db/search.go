package db

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern is a LIKE pattern matching term as a literal substring.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// searchArg binds an optional search term; nil leaves the filter off.
func searchArg(q any) any {
	if term, ok := q.(string); ok {
		return ContainsPattern(term)
	}
	return q
}
