// Package adjust rewrites historical price series for corporate actions.
// Event columns carried on the rows (split ratios, dividends, capital
// changes) drive a backward cumulative factor over the price fields, so
// the latest prices stay as quoted and earlier prices are restated.
//
// Apply consumes the event columns it uses. Running the same flags over
// already-adjusted output is therefore a no-op.
package adjust
