// Package version holds the semantic version type used by dstcore and the
// version of the module itself.
//
//	v, err := version.Parse("v1.4.2")
//	if v.Less(version.Current) { ... }
//	fmt.Println(version.Current) // 1.0.0
package version
