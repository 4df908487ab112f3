// Lint rules for gocritic's ruleguard checker. Run with:
//
//	golangci-lint run (gocritic ruleguard) or
//	ruleguard -rules ruleguard/rules-smells.go ./...
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two consecutive guards returning the same value are mergeable with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`)

	// fmt.Errorf without %w loses the error chain for errors.Is/As.
	m.Match(`fmt.Errorf($fmt, $*_, $err)`).
		Where(m["err"].Type.Is(`error`) && !m["fmt"].Text.Matches(`.*%w.*`)).
		Report(`wrapping an error without %w breaks errors.Is/errors.As matching`)

	// context.Background() inside request handlers drops cancellation; the
	// request context should flow through.
	m.Match(`$db.QueryContext(context.Background(), $*_)`,
		`$db.ExecContext(context.Background(), $*_)`).
		Report(`use the caller's context instead of context.Background() for request-scoped queries`)
}
