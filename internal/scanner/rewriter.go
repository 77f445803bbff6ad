package scanner

// RewriteReference returns stmt with the literal captured by loc replaced
// by id. loc is the submatch index slice of the reference pattern applied
// to stmt; loc[2]:loc[3] spans the literal between the quotes. The quotes
// and everything outside the literal are preserved byte for byte. stmt is
// not modified.
func RewriteReference(stmt []byte, loc []int, id string) []byte {
	if len(loc) < 4 || loc[2] < 0 || loc[3] > len(stmt) || loc[2] > loc[3] {
		return stmt
	}

	out := make([]byte, 0, len(stmt)-(loc[3]-loc[2])+len(id))
	out = append(out, stmt[:loc[2]]...)
	out = append(out, id...)
	out = append(out, stmt[loc[3]:]...)

	return out
}
