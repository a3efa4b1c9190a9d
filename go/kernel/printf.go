package kernel

import (
	"strconv"
	"strings"
)

// sprintf formats guest Print output. It knows %d %u %x %c %s and %%,
// taking at most three arguments; anything else is copied through.
func (k *Kernel) sprintf(format string, args ...uint32) string {
	var out strings.Builder
	next := 0
	arg := func() (uint32, bool) {
		if next >= len(args) {
			return 0, false
		}
		next++
		return args[next-1], true
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			out.WriteByte(c)
			continue
		}
		i++
		verb := format[i]
		if verb == '%' {
			out.WriteByte('%')
			continue
		}
		if strings.IndexByte("duxcs", verb) < 0 {
			out.WriteByte('%')
			out.WriteByte(verb)
			continue
		}
		v, ok := arg()
		if !ok {
			out.WriteString("%!" + string(verb) + "(missing)")
			continue
		}
		switch verb {
		case 'd':
			out.WriteString(strconv.FormatInt(int64(int32(v)), 10))
		case 'u':
			out.WriteString(strconv.FormatUint(uint64(v), 10))
		case 'x':
			out.WriteString(strconv.FormatUint(uint64(v), 16))
		case 'c':
			out.WriteByte(byte(v))
		case 's':
			s, err := k.readStr(v)
			if err != nil {
				out.WriteString("%!s(bad pointer)")
			} else {
				out.WriteString(s)
			}
		}
	}
	return out.String()
}
