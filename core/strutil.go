package core

// Utoa converts an unsigned integer to a string without the fmt package
func Utoa(n uint32) string {
	return utoa(n)
}

// Ftoa formats f with three decimals, without the fmt package
func Ftoa(f float32) string {
	negative := f < 0
	if negative {
		f = -f
	}
	milli := uint64(f*1000 + 0.5)
	whole := milli / 1000
	frac := milli % 1000

	s := utoa64(whole) + "."
	if frac < 100 {
		s += "0"
	}
	if frac < 10 {
		s += "0"
	}
	s += utoa64(frac)
	if negative {
		return "-" + s
	}
	return s
}

func itoa(n int) string {
	if n < 0 {
		return "-" + utoa64(uint64(-n))
	}
	return utoa64(uint64(n))
}

func utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}

	// Count digits
	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	// Build string from right to left
	buf := make([]byte, digits)
	pos := digits - 1

	for n > 0 {
		buf[pos] = byte('0' + n%10)
		n /= 10
		pos--
	}

	return string(buf)
}
