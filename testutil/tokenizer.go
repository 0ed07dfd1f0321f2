package testutil

// ByteLoader is an offline tiktoken BPE loader for tests. Every byte is its own token, and
// Merges adds multi-byte tokens on top. Install it with tiktoken.SetBpeLoader.
type ByteLoader struct {
	Merges []string
}

// LoadTiktokenBpe implements tiktoken.BpeLoader. The file argument is ignored.
func (l ByteLoader) LoadTiktokenBpe(string) (map[string]int, error) {
	ranks := make(map[string]int, 256+len(l.Merges))
	for i := range 256 {
		ranks[string([]byte{byte(i)})] = i
	}
	for i, m := range l.Merges {
		ranks[m] = 256 + i
	}
	return ranks, nil
}
