/*
Package lakeerr defines the orchestrator's error taxonomy: one Kind
per named failure mode (parse error, unsupported dialect, invalid or
missing source, config error, dispatch error, task failure, stage
timeout, cache inconsistency, dataset-already-exists), plus a small
Error type that carries a Kind, a message, optional free-form Details,
and an optional wrapped Cause.

Callers that need to branch on failure mode use IsKind/GetKind rather
than string-matching Error(); callers that just need to log or return
the error use it like any other error value.

	if err := resolver.Resolve(ctx, src); err != nil {
		if lakeerr.IsKind(err, lakeerr.KindSourceNotFound) {
			return nil, err
		}
		return nil, lakeerr.Wrap(err, lakeerr.KindInvalidSource, src)
	}

Only KindCacheInconsistency is ever recovered internally (by the Cache
Index itself, invalidating the stale entry and reporting a miss); every
other kind propagates to the stage or query boundary unchanged — there
is no generic retry policy keyed off Kind: a task failure is fatal for
its stage, with no automatic retry.
*/
package lakeerr
