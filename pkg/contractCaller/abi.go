package contractCaller

const VaultAbi = `[
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getUnderlyingBalances","stateMutability":"view","inputs":[],"outputs":[{"name":"amount0Current","type":"uint256"},{"name":"amount1Current","type":"uint256"}]},
	{"type":"function","name":"getBalanceInCollateralToken","stateMutability":"view","inputs":[],"outputs":[{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"managerBalance0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"managerBalance1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"managerBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"treasuryBalance0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"treasuryBalance1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"lowerTick","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int24"}]},
	{"type":"function","name":"upperTick","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int24"}]},
	{"type":"function","name":"getPositionID","stateMutability":"view","inputs":[],"outputs":[{"name":"positionID","type":"bytes32"}]},
	{"type":"function","name":"inThePosition","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"liquidity","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"manager","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"treasury","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"token1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"managingFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
	{"type":"function","name":"performanceFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
	{"type":"function","name":"managerFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
	{"type":"function","name":"treasuryFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]}
]`

const Erc20Abi = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const UniswapV3PoolAbi = `[
	{"type":"function","name":"slot0","stateMutability":"view","inputs":[],"outputs":[
		{"name":"sqrtPriceX96","type":"uint160"},
		{"name":"tick","type":"int24"},
		{"name":"observationIndex","type":"uint16"},
		{"name":"observationCardinality","type":"uint16"},
		{"name":"observationCardinalityNext","type":"uint16"},
		{"name":"feeProtocol","type":"uint8"},
		{"name":"unlocked","type":"bool"}
	]},
	{"type":"function","name":"positions","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"}],"outputs":[
		{"name":"liquidity","type":"uint128"},
		{"name":"feeGrowthInside0LastX128","type":"uint256"},
		{"name":"feeGrowthInside1LastX128","type":"uint256"},
		{"name":"tokensOwed0","type":"uint128"},
		{"name":"tokensOwed1","type":"uint128"}
	]}
]`

const AlgebraPoolAbi = `[
	{"type":"function","name":"globalState","stateMutability":"view","inputs":[],"outputs":[
		{"name":"price","type":"uint160"},
		{"name":"tick","type":"int24"},
		{"name":"fee","type":"uint16"},
		{"name":"timepointIndex","type":"uint16"},
		{"name":"communityFeeToken0","type":"uint8"},
		{"name":"communityFeeToken1","type":"uint8"},
		{"name":"unlocked","type":"bool"}
	]},
	{"type":"function","name":"positions","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"}],"outputs":[
		{"name":"liquidity","type":"uint128"},
		{"name":"lastLiquidityAddTimestamp","type":"uint32"},
		{"name":"innerFeeGrowth0Token","type":"uint256"},
		{"name":"innerFeeGrowth1Token","type":"uint256"},
		{"name":"fees0","type":"uint128"},
		{"name":"fees1","type":"uint128"}
	]}
]`
