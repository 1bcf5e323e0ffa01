package strcase

import "testing"

func TestSnake(t *testing.T) { snake(t) }

func BenchmarkSnake(b *testing.B) {
	for n := 0; n < b.N; n++ {
		snake(b)
	}
}

func TestScreamingSnake(t *testing.T) { screamingSnake(t) }

func BenchmarkScreamingSnake(b *testing.B) {
	for n := 0; n < b.N; n++ {
		screamingSnake(b)
	}
}

func snake(tb testing.TB) {
	cases := [][]string{
		{"", ""},
		{"AnyKind of_string", "any_kind_of_string"},
		{" Test Case ", "test_case"},
		{"testCase", "test_case"},
		{"test_case", "test_case"},
		{"TestCase", "test_case"},
		{"Test", "test"},
		{"test", "test"},
		{"ID", "id"},
		{"DcId", "dc_id"},
		{"AuthKey", "auth_key"},
		{"SessionName", "session_name"},
		{"ManyManyWords", "many_many_words"},
		{"manyManyWords", "many_many_words"},
		{" some string", "some_string"},
		{"userID", "user_id"},
		{"sqlite3", "sqlite_3"},
	}
	for _, c := range cases {
		s, expected := c[0], c[1]
		actual := Snake(s)
		if actual != expected {
			tb.Errorf("%q: %q != %q", s, actual, expected)
		}
	}
}

func screamingSnake(tb testing.TB) {
	cases := [][]string{
		{"", ""},
		{"AnyKind of_string", "ANY_KIND_OF_STRING"},
		{"testCase", "TEST_CASE"},
		{"TestCase", "TEST_CASE"},
		{"Test", "TEST"},
		{"ID", "ID"},
		{"SessionName", "SESSION_NAME"},
		{"ManyManyWords", "MANY_MANY_WORDS"},
		{"userID", "USER_ID"},
		{"sqlite3", "SQLITE_3"},
	}
	for _, c := range cases {
		s, expected := c[0], c[1]
		actual := ScreamingSnake(s)
		if actual != expected {
			tb.Errorf("%q: %q != %q", s, actual, expected)
		}
	}
}
