// Package seed resolves seed dataset declarations out of a dbt project
// document.
//
// Seeds are declared under the top-level seeds key, nested by project and
// schema and then by any number of directory levels. A node carrying a
// "+post-hook" is a leaf; its hook text holds a call such as
//
//	{{ load_seed('tuva-public-resources/versioned_terminology/0.14.4','admit_source.csv',compression=true) }}
//
// whose first argument is the storage path (bucket/prefix) and second the
// filename pattern. Every other node is interior and is walked in document
// order.
//
//	res, err := seed.ResolveDocument(ctx, data)
//	if err != nil {
//	    return err // malformed document
//	}
//	for _, d := range res.Descriptors {
//	    fmt.Println(d.Bucket, d.KeyPrefix, d.TargetKey())
//	}
package seed
