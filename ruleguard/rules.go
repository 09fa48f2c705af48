package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two guards returning the same value can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic`)
}

func errorWrapping(m dsl.Matcher) {
	// Sentinels from pkg/apperr must stay reachable through errors.Is.
	m.Match(`fmt.Errorf($f, $*_, $err)`).
		Where(m["err"].Type.Is(`error`) && m["f"].Text.Matches(`%v"$`)).
		Report(`error formatted with %v loses its chain; use %w`)

	m.Match(`$err.Error() == $s`).
		Where(m["err"].Type.Is(`error`)).
		Report(`compare errors with errors.Is, not by message`)
}

func upstreamCalls(m dsl.Matcher) {
	// Upstream calls (USDA, vision providers) must honour request cancellation.
	m.Match(`http.Get($*_)`, `http.Post($*_)`, `http.NewRequest($*_)`).
		Report(`use http.NewRequestWithContext so the caller's ctx bounds the call`)

	m.Match(`time.Sleep($d)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`time.Sleep ignores cancellation; wait on ctx.Done() and a timer instead`)
}

func logging(m dsl.Matcher) {
	m.Match(`zap.Any($k, $err)`).
		Where(m["err"].Type.Is(`error`)).
		Report(`log errors with zap.Error`).
		Suggest(`zap.Error($err)`)

	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `fmt.Println($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`internal packages log through the injected *zap.Logger`)
}
