/*
Package proxy implements the ServerStoreProxy (spec §4.6): the
client-side concurrency core that turns the entity server's single
mutating primitive, getAndAppend, into put/remove/putIfAbsent/replace/
replaceConditional/bulkCompute.

Every mutating call sends one operation blob and receives the chain
that existed immediately before it landed. The proxy never asks the
server to interpret an operation; it folds the pre-chain itself (via
pkg/resolver) against the key and the operation it just sent to decide
what to tell the caller. This is what lets conditional operations be
correct with no server-side logic: every other client appending later
folds the same blob the same way.
*/
package proxy
