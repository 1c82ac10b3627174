package memory

// Module returns a WebAssembly binary declaring one memory of initialPages
// pages, exported as ExportName. maxPages of 0 leaves the memory unbounded.
func Module(initialPages, maxPages uint32) []byte {
	limits := []byte{0x00}
	limits = appendULEB128(limits, initialPages)
	if maxPages > 0 {
		limits[0] = 0x01
		limits = appendULEB128(limits, maxPages)
	}

	memSection := append([]byte{0x01}, limits...) // one memory

	exportSection := []byte{0x01, byte(len(ExportName))}
	exportSection = append(exportSection, ExportName...)
	exportSection = append(exportSection, 0x02, 0x00) // kind: memory, index 0

	out := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}
	out = appendSection(out, 0x05, memSection)
	out = appendSection(out, 0x07, exportSection)
	return out
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = appendULEB128(out, uint32(len(payload)))
	return append(out, payload...)
}

func appendULEB128(out []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
