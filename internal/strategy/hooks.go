package strategy

// ChainHooks combines several hook sets; each callback runs in argument order.
func ChainHooks(hs ...Hooks) Hooks {
	var out Hooks
	for _, h := range hs {
		out.OnBar = chain1(out.OnBar, h.OnBar)
		out.OnSkip = chain1(out.OnSkip, h.OnSkip)
		out.OnEntry = chain2(out.OnEntry, h.OnEntry)
		out.OnStopRatchet = chain1(out.OnStopRatchet, h.OnStopRatchet)
		out.OnTargetRatchet = chain1(out.OnTargetRatchet, h.OnTargetRatchet)
		out.OnExit = chain2(out.OnExit, h.OnExit)
		out.OnOrderEvent = chain1(out.OnOrderEvent, h.OnOrderEvent)
		out.OnStateChange = chain1(out.OnStateChange, h.OnStateChange)
		out.OnIntentError = chain2(out.OnIntentError, h.OnIntentError)
	}
	return out
}

func chain1[A any](a, b func(A)) func(A) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A) { a(x); b(x) }
}

func chain2[A, B any](a, b func(A, B)) func(A, B) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A, y B) { a(x, y); b(x, y) }
}
