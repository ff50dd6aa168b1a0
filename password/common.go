package password

// defaultCommonPasswords is the built-in deny list. Callers with a larger
// corpus can supply their own through PolicyConfig.CommonList.
var defaultCommonPasswords = []string{
	"password", "password1", "password123", "passw0rd", "p@ssw0rd",
	"123456", "1234567", "12345678", "123456789", "1234567890",
	"qwerty", "qwerty123", "qwertyuiop", "asdfgh", "asdfghjkl", "zxcvbnm",
	"111111", "123123", "121212", "654321", "000000", "abc123", "abcd1234",
	"letmein", "welcome", "welcome1", "monkey", "dragon", "sunshine",
	"princess", "football", "baseball", "soccer", "master", "shadow",
	"superman", "batman", "trustno1", "iloveyou", "starwars", "whatever",
	"freedom", "ninja", "mustang", "access", "flower", "hello123",
	"michael", "jessica", "ashley", "charlie", "jordan", "hunter",
	"secret", "admin", "admin123", "root", "login", "passpass",
	"summer2024", "winter2024", "changeme", "internet", "computer",
}
