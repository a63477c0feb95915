package util

import "strings"

// MaskPixKey obscures a PIX key for logging, showing only the first and last
// few characters. PIX keys are personal data (CPF, phone or email).
func MaskPixKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	} else if len(key) > 4 {
		return key[:2] + "..." + key[len(key)-2:]
	} else if len(key) > 2 {
		return key[:1] + "..." + key[len(key)-1:]
	}
	return key
}

// MaskPhone obscures a phone number for logging, keeping the country/area
// prefix and the final two digits.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 6 {
		return MaskPixKey(phone)
	}
	return phone[:4] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-2:]
}
