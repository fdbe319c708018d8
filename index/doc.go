// Package index builds and queries vector indexes over document chunks.
//
// A Builder embeds chunks on a worker pool and writes the resulting entries
// to a Store in one step. Stores live in sub-packages:
//
//   - memory: process-local, lost on exit
//   - badger: persistent on local disk
//   - pinecone: managed remote index
//
// A VectorIndex pairs a Store with the Embedder used to build it and answers
// text queries:
//
//	builder, err := index.NewBuilder(embedder, index.WithPoolSize(4))
//	defer builder.Release()
//	idx, err := builder.Build(ctx, memory.New(), chunks)
//	result, err := idx.Query(ctx, "Who is the developer?", 5)
package index
